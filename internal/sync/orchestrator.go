package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/events"
	"github.com/yourorg/listings-api/internal/images"
	"github.com/yourorg/listings-api/internal/store"
)

// LastSyncSettingKey is the settings-table watermark for incremental mode.
const LastSyncSettingKey = "last_successful_sync"

// ListingClient is the slice of ampre.Client the orchestrator needs.
type ListingClient interface {
	FetchListings(ctx context.Context, q ampre.Query) ([]ampre.Listing, int, error)
}

// ListingStore is the slice of store.Store the orchestrator needs; tests
// substitute a fake.
type ListingStore interface {
	UpsertListing(ctx context.Context, in store.UpsertInput) (bool, error)
	MarkSyncFailed(ctx context.Context, listingKey, syncErr string) error
	SetPrimaryImage(ctx context.Context, listingKey, url string) error
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Result aggregates one sync run. Synced counts new rows, Updated rewritten
// rows, Failed records whose mapping or write failed.
type Result struct {
	Synced  int `json:"synced"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Orchestrator drives full, incremental and targeted synchronization. All
// collaborators are passed in explicitly; there are no package-level
// singletons.
type Orchestrator struct {
	Client   ListingClient
	Store    ListingStore
	Images   *images.Resolver // optional; used by targeted sync
	Pub      events.Publisher // optional
	PageSize int
	FullCap  int
}

func (o *Orchestrator) pageSize() int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return 100
}

func (o *Orchestrator) fullCap() int {
	if o.FullCap > 0 {
		return o.FullCap
	}
	return 1000
}

func baseQuery() ampre.Query {
	return ampre.NewQuery().
		Select(ampre.SelectFields...).
		OrderBy("ListingKey")
}

// FullSync pages the remote client from offset 0 up to limit, upserting
// every record. A failing record is counted and skipped, never fatal.
func (o *Orchestrator) FullSync(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 || limit > o.fullCap() {
		limit = o.fullCap()
	}
	return o.pageThrough(ctx, baseQuery(), limit)
}

// IncrementalSync pages only records modified since the last successful
// run. The watermark advances to the run's start time once every page has
// been fetched; per-record failures do not hold it back.
func (o *Orchestrator) IncrementalSync(ctx context.Context) (Result, error) {
	started := time.Now().UTC()
	q := baseQuery()
	if raw, ok, err := o.Store.GetSetting(ctx, LastSyncSettingKey); err != nil {
		return Result{}, fmt.Errorf("read sync watermark: %w", err)
	} else if ok {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Printf("[WARN] unparseable sync watermark %q, running full window", raw)
		} else {
			q = q.Ge("ModificationTimestamp", since)
		}
	}
	res, err := o.pageThrough(ctx, q, o.fullCap())
	if err != nil {
		return res, err
	}
	if err := o.Store.PutSetting(ctx, LastSyncSettingKey, started.Format(time.RFC3339)); err != nil {
		return res, fmt.Errorf("advance sync watermark: %w", err)
	}
	return res, nil
}

// TargetedSync fetches and upserts an explicit key list, then re-resolves
// images for those keys only.
func (o *Orchestrator) TargetedSync(ctx context.Context, keys []string) (Result, error) {
	if len(keys) == 0 {
		return Result{}, errors.New("no listing keys given")
	}
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, k)
	}
	q := baseQuery().In("ListingKey", vals...).Top(len(keys))
	listings, _, err := o.Client.FetchListings(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("targeted fetch: %w", err)
	}

	var res Result
	fetched := make(map[string]bool, len(listings))
	for _, l := range listings {
		fetched[l.ListingKey] = true
		o.processRecord(ctx, l, &res)
	}
	for _, k := range keys {
		if !fetched[k] {
			res.Failed++
			if err := o.Store.MarkSyncFailed(ctx, k, "listing not found upstream"); err != nil {
				log.Printf("[WARN] record failure mark for %s: %v", k, err)
			}
		}
	}
	o.refreshImages(ctx, keys)
	return res, nil
}

func (o *Orchestrator) pageThrough(ctx context.Context, q ampre.Query, limit int) (Result, error) {
	var res Result
	pageSize := o.pageSize()
	for offset := 0; offset < limit; offset += pageSize {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		top := pageSize
		if remaining := limit - offset; remaining < top {
			top = remaining
		}
		page, _, err := o.Client.FetchListings(ctx, q.Top(top).Skip(offset))
		if err != nil {
			return res, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		for _, l := range page {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			o.processRecord(ctx, l, &res)
		}
		if len(page) < top {
			break
		}
	}
	return res, nil
}

// processRecord maps and upserts one listing, recording the outcome on the
// row's sync metadata either way.
func (o *Orchestrator) processRecord(ctx context.Context, l ampre.Listing, res *Result) {
	in, err := MapListing(l)
	if err != nil {
		res.Failed++
		if l.ListingKey != "" {
			if markErr := o.Store.MarkSyncFailed(ctx, l.ListingKey, err.Error()); markErr != nil {
				log.Printf("[WARN] record failure mark for %s: %v", l.ListingKey, markErr)
			}
		}
		return
	}
	updated, err := o.Store.UpsertListing(ctx, in)
	if err != nil {
		res.Failed++
		if markErr := o.Store.MarkSyncFailed(ctx, l.ListingKey, err.Error()); markErr != nil {
			log.Printf("[WARN] record failure mark for %s: %v", l.ListingKey, markErr)
		}
		return
	}
	if updated {
		res.Updated++
	} else {
		res.Synced++
	}
	if o.Pub != nil {
		o.Pub.PublishListingUpdated(ctx, events.ListingUpdated{ListingKey: l.ListingKey})
	}
}

func (o *Orchestrator) refreshImages(ctx context.Context, keys []string) {
	if o.Images == nil {
		return
	}
	if _, err := o.Images.Invalidate(ctx, keys, nil); err != nil {
		log.Printf("[WARN] image cache invalidation: %v", err)
	}
	resolved, _, err := o.Images.Resolve(ctx, images.Request{Keys: keys, SizeVariant: "large"})
	if err != nil {
		log.Printf("[WARN] image refresh: %v", err)
		return
	}
	for key, img := range resolved {
		if img.Status != images.StatusSuccess || img.ImageURL == nil {
			continue
		}
		if err := o.Store.SetPrimaryImage(ctx, key, *img.ImageURL); err != nil {
			log.Printf("[WARN] primary image write for %s: %v", key, err)
		}
	}
}

// MapListing converts a remote record into the store's upsert input,
// validating the fields the local schema depends on.
func MapListing(l ampre.Listing) (store.UpsertInput, error) {
	if l.ListingKey == "" {
		return store.UpsertInput{}, errors.New("missing listing key")
	}
	if l.ListPrice < 0 {
		return store.UpsertInput{}, fmt.Errorf("negative list price %v", l.ListPrice)
	}
	in := store.UpsertInput{
		ListingKey:      l.ListingKey,
		StreetNumber:    string(l.StreetNumber),
		StreetName:      l.StreetName,
		StreetSuffix:    l.StreetSuffix,
		UnitNumber:      l.UnitNumber,
		City:            l.City,
		Province:        l.StateOrProvince,
		PostalCode:      l.PostalCode,
		TransactionType: l.TransactionType,
		PropertyType:    l.PropertyType,
		PropertySubType: l.PropertySubType,
		Status:          l.StandardStatus,
		PublicRemarks:   l.PublicRemarks,
	}
	if l.ListPrice > 0 {
		in.ListPrice = sql.NullFloat64{Float64: l.ListPrice, Valid: true}
	}
	if l.BedroomsTotal > 0 {
		in.Bedrooms = sql.NullInt64{Int64: int64(l.BedroomsTotal), Valid: true}
	}
	if l.BathroomsTotalInteger > 0 {
		in.Bathrooms = sql.NullInt64{Int64: int64(l.BathroomsTotalInteger), Valid: true}
	}
	if l.LivingArea > 0 {
		in.LivingArea = sql.NullFloat64{Float64: l.LivingArea, Valid: true}
	}
	return in, nil
}
