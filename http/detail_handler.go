package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listings-api/internal/cache"
	"github.com/yourorg/listings-api/internal/images"
	"github.com/yourorg/listings-api/internal/store"
)

// DetailStore is the store surface the detail endpoint reads.
type DetailStore interface {
	GetListing(ctx context.Context, listingKey string) (store.ListingRecord, error)
	NearbyListings(ctx context.Context, rec store.ListingRecord, limit int) ([]store.ListingRecord, error)
}

type DetailDeps struct {
	Store       DetailStore
	Cache       cache.Cache
	Resolver    *images.Resolver
	DetailTTL   time.Duration // ~5 minutes
	NegativeTTL time.Duration // miss cooldown
	Production  bool
}

// DetailCacheKey is shared with the sync-side invalidator.
func DetailCacheKey(listingKey string) string { return "detail:" + listingKey }

func missCacheKey(listingKey string) string { return "detail:miss:" + listingKey }

// lockingCache is satisfied by the redis cache; the memory cache skips the
// stampede guard.
type lockingCache interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

type detailPayload struct {
	Listing ListingView                `json:"listing"`
	Images  map[string]images.Resolved `json:"images"`
	Nearby  []ListingView              `json:"nearby"`
}

func (d DetailDeps) detailTTL() time.Duration {
	if d.DetailTTL > 0 {
		return d.DetailTTL
	}
	return 5 * time.Minute
}

func (d DetailDeps) negativeTTL() time.Duration {
	if d.NegativeTTL > 0 {
		return d.NegativeTTL
	}
	return time.Minute
}

func RegisterDetail(r chi.Router, d DetailDeps) {
	r.Get("/api/property-detail", func(w http.ResponseWriter, req *http.Request) {
		key := req.URL.Query().Get("listingKey")
		if key == "" {
			writeErr(w, req, http.StatusBadRequest, "listingKey is required", "", false)
			return
		}
		ctx := req.Context()

		if b, err := d.Cache.Get(ctx, DetailCacheKey(key)); err == nil {
			var payload detailPayload
			if json.Unmarshal(b, &payload) == nil {
				render.JSON(w, req, map[string]any{"success": true, "source": "cache", "data": payload})
				return
			}
		}

		if _, err := d.Cache.Get(ctx, missCacheKey(key)); err == nil {
			writeErr(w, req, http.StatusNotFound, "Property not found", "", false)
			return
		}

		// Short lock so a burst for one cold key does one aggregation.
		if lc, ok := d.Cache.(lockingCache); ok {
			if acquired, _ := lc.SetNX(ctx, "detail:lock:"+key, []byte("1"), 8*time.Second); !acquired {
				render.Status(req, http.StatusAccepted)
				render.JSON(w, req, map[string]any{"success": false, "in_progress": true, "listing_key": key})
				return
			}
		}

		rec, err := d.Store.GetListing(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			_ = d.Cache.Set(ctx, missCacheKey(key), []byte("1"), d.negativeTTL())
			writeErr(w, req, http.StatusNotFound, "Property not found", "", false)
			return
		}
		if err != nil {
			writeErr(w, req, http.StatusInternalServerError, "listing lookup failed", err.Error(), !d.Production)
			return
		}

		payload := detailPayload{Listing: listingView(rec), Nearby: []ListingView{}}

		resolved, _, err := d.Resolver.Resolve(ctx, images.Request{
			Keys:           []string{key},
			SizeVariant:    "large",
			EnableFallback: true,
		})
		if err != nil {
			// degraded detail beats a hard failure for marketing pages
			log.Printf("[WARN] detail image resolution for %s: %v", key, err)
			resolved = map[string]images.Resolved{}
		}
		payload.Images = resolved

		nearby, err := d.Store.NearbyListings(ctx, rec, 6)
		if err != nil {
			log.Printf("[WARN] nearby lookup for %s: %v", key, err)
		} else {
			payload.Nearby = listingViews(nearby)
		}

		if b, err := json.Marshal(payload); err == nil {
			_ = d.Cache.Set(ctx, DetailCacheKey(key), b, d.detailTTL())
		}
		render.JSON(w, req, map[string]any{"success": true, "source": "fresh", "data": payload})
	})
}
