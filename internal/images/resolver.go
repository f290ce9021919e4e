package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/cache"
)

// Statuses reported per listing key.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusNoImage  = "no_image"
)

// Size variants accepted by the resolver; the variant is part of the cache
// key so differently sized renditions expire independently.
var SizeVariants = map[string]bool{
	"thumbnail": true,
	"medium":    true,
	"large":     true,
}

// DefaultPlaceholders is the stock placeholder set. Selection is by hash of
// the listing key, so a key maps to the same placeholder on every call.
var DefaultPlaceholders = []string{
	"/images/placeholders/listing-1.jpg",
	"/images/placeholders/listing-2.jpg",
	"/images/placeholders/listing-3.jpg",
	"/images/placeholders/listing-4.jpg",
}

// MediaFetcher is the slice of ampre.Client the resolver needs.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, keys []string) ([]ampre.Media, error)
}

type Descriptor struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Order   int    `json:"order"`
}

// Resolved is the per-key outcome. ImageURL is nil only when fallback was
// disabled and no real photo exists.
type Resolved struct {
	ListingKey    string       `json:"listing_key"`
	ImageURL      *string      `json:"image_url"`
	AllImages     []Descriptor `json:"all_images"`
	Status        string       `json:"status"`
	IsPlaceholder bool         `json:"is_placeholder"`
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	FromCache     bool         `json:"-"`
}

// cacheEntry is the JSON payload stored in the cache layer.
type cacheEntry struct {
	URL           string       `json:"url"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	IsPlaceholder bool         `json:"is_placeholder"`
	FetchedAt     time.Time    `json:"fetched_at"`
	AllImages     []Descriptor `json:"all_images,omitempty"`
}

type Request struct {
	Keys           []string
	SizeVariant    string
	HighPriority   bool
	EnableFallback bool
	CacheTTL       time.Duration // overrides the priority-derived TTL when > 0
}

type Metadata struct {
	Requested    int   `json:"requested"`
	Resolved     int   `json:"resolved"`
	Placeholders int   `json:"placeholders"`
	CacheHits    int   `json:"cache_hits"`
	DurationMs   int64 `json:"duration_ms"`
}

type Resolver struct {
	Client          MediaFetcher
	Cache           cache.Cache
	DefaultTTL      time.Duration // 1h
	HighPriorityTTL time.Duration // 2h
	BatchLimit      int           // max keys per call
	ChunkSize       int           // keys per upstream request
	Placeholders    []string
}

var ErrBatchTooLarge = errors.New("too many listing keys in one batch")

func (r *Resolver) batchLimit() int {
	if r.BatchLimit > 0 {
		return r.BatchLimit
	}
	return 50
}

func (r *Resolver) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return 5
}

func (r *Resolver) ttl(req Request) time.Duration {
	if req.CacheTTL > 0 {
		return req.CacheTTL
	}
	if req.HighPriority && r.HighPriorityTTL > 0 {
		return r.HighPriorityTTL
	}
	if r.DefaultTTL > 0 {
		return r.DefaultTTL
	}
	return time.Hour
}

func CacheKey(listingKey, sizeVariant string) string {
	return fmt.Sprintf("img:%s:%s", listingKey, sizeVariant)
}

// Resolve returns exactly one entry per requested key. Within one call each
// missing key triggers at most one upstream fetch; duplicate keys in the
// request are collapsed before fetching.
func (r *Resolver) Resolve(ctx context.Context, req Request) (map[string]Resolved, Metadata, error) {
	started := time.Now()
	if req.SizeVariant == "" || !SizeVariants[req.SizeVariant] {
		req.SizeVariant = "large"
	}

	keys := dedupe(req.Keys)
	if len(keys) > r.batchLimit() {
		return nil, Metadata{}, ErrBatchTooLarge
	}

	out := make(map[string]Resolved, len(keys))
	meta := Metadata{Requested: len(keys)}

	var missing []string
	for _, k := range keys {
		if res, ok := r.fromCache(ctx, k, req.SizeVariant); ok {
			res.FromCache = true
			out[k] = res
			meta.CacheHits++
			continue
		}
		missing = append(missing, k)
	}

	for _, chunk := range chunks(missing, r.chunkSize()) {
		media, err := r.Client.FetchMedia(ctx, chunk)
		if err != nil {
			// degrade, never fail the whole batch on one chunk
			log.Printf("[WARN] media fetch failed for %d key(s): %v", len(chunk), err)
			for _, k := range chunk {
				out[k] = r.fallback(ctx, k, req)
			}
			continue
		}
		byListing := ampre.GroupMediaByListing(media)
		for _, k := range chunk {
			list := byListing[k]
			if len(list) == 0 {
				out[k] = r.fallback(ctx, k, req)
				continue
			}
			out[k] = r.store(ctx, k, list, req)
		}
	}

	for _, res := range out {
		switch res.Status {
		case StatusSuccess:
			meta.Resolved++
		case StatusFallback:
			meta.Placeholders++
		}
	}
	meta.DurationMs = time.Since(started).Milliseconds()
	return out, meta, nil
}

// Invalidate removes cached entries for every (key, size) pair and returns
// how many existed.
func (r *Resolver) Invalidate(ctx context.Context, keys, sizes []string) (int, error) {
	if len(sizes) == 0 {
		sizes = []string{"thumbnail", "medium", "large"}
	}
	removed := 0
	for _, k := range keys {
		for _, sz := range sizes {
			ok, err := r.Cache.Delete(ctx, CacheKey(k, sz))
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
	}
	return removed, nil
}

func (r *Resolver) fromCache(ctx context.Context, key, size string) (Resolved, bool) {
	b, err := r.Cache.Get(ctx, CacheKey(key, size))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("[WARN] image cache read failed for %s: %v", key, err)
		}
		return Resolved{}, false
	}
	var e cacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return Resolved{}, false
	}
	status := StatusSuccess
	if e.IsPlaceholder {
		status = StatusFallback
	}
	url := e.URL
	return Resolved{
		ListingKey:    key,
		ImageURL:      &url,
		AllImages:     e.AllImages,
		Status:        status,
		IsPlaceholder: e.IsPlaceholder,
		Width:         e.Width,
		Height:        e.Height,
	}, true
}

func (r *Resolver) store(ctx context.Context, key string, media []ampre.Media, req Request) Resolved {
	descriptors := make([]Descriptor, 0, len(media))
	for _, m := range media {
		if m.MediaURL == "" {
			continue
		}
		descriptors = append(descriptors, Descriptor{
			URL:     ampre.NormalizeMediaURL(m.MediaURL),
			Caption: m.ShortDescription,
			Order:   m.Order,
		})
	}
	if len(descriptors) == 0 {
		return r.fallback(ctx, key, req)
	}
	primary := descriptors[0]
	entry := cacheEntry{
		URL:       primary.URL,
		Width:     media[0].ImageWidth,
		Height:    media[0].ImageHeight,
		FetchedAt: time.Now(),
		AllImages: descriptors,
	}
	r.put(ctx, key, req, entry)
	url := primary.URL
	return Resolved{
		ListingKey: key,
		ImageURL:   &url,
		AllImages:  descriptors,
		Status:     StatusSuccess,
		Width:      entry.Width,
		Height:     entry.Height,
	}
}

// fallback yields the deterministic placeholder when fallback is enabled,
// otherwise an explicit no-image outcome with a nil URL.
func (r *Resolver) fallback(ctx context.Context, key string, req Request) Resolved {
	if !req.EnableFallback {
		return Resolved{ListingKey: key, ImageURL: nil, AllImages: []Descriptor{}, Status: StatusNoImage}
	}
	url := r.PlaceholderFor(key)
	entry := cacheEntry{URL: url, IsPlaceholder: true, FetchedAt: time.Now()}
	r.put(ctx, key, req, entry)
	return Resolved{
		ListingKey:    key,
		ImageURL:      &url,
		AllImages:     []Descriptor{},
		Status:        StatusFallback,
		IsPlaceholder: true,
	}
}

func (r *Resolver) put(ctx context.Context, key string, req Request, entry cacheEntry) {
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, CacheKey(key, req.SizeVariant), b, r.ttl(req)); err != nil {
		log.Printf("[WARN] image cache write failed for %s: %v", key, err)
	}
}

// PlaceholderFor maps a listing key onto the placeholder set; the same key
// always lands on the same image.
func (r *Resolver) PlaceholderFor(listingKey string) string {
	set := r.Placeholders
	if len(set) == 0 {
		set = DefaultPlaceholders
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(listingKey))
	return set[h.Sum32()%uint32(len(set))]
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func chunks(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}
