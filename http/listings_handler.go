package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listings-api/internal/store"
)

// ListingStore is the store surface the listing endpoints read and
// administer; *store.Store satisfies it, tests drop in a fake.
type ListingStore interface {
	BrowseListings(ctx context.Context, f store.BrowseFilter) ([]store.ListingRecord, int, error)
	GetListing(ctx context.Context, listingKey string) (store.ListingRecord, error)
	DeleteListings(ctx context.Context, keys []string) (int64, error)
	DeleteAllListings(ctx context.Context) (int64, error)
}

type ListingsDeps struct {
	Store      ListingStore
	Production bool
}

func RegisterListings(r chi.Router, d ListingsDeps) {
	r.Get("/api/mls/listings", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		f := store.BrowseFilter{
			City:            q.Get("city"),
			Status:          q.Get("status"),
			PropertyType:    q.Get("type"),
			TransactionType: q.Get("transaction"),
			Search:          q.Get("search"),
		}
		if v := q.Get("min_price"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				f.MinPrice = p
			}
		}
		if v := q.Get("max_price"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				f.MaxPrice = p
			}
		}
		page := 1
		if v := q.Get("page"); v != "" {
			if i, err := strconv.Atoi(v); err == nil && i > 0 {
				page = i
			}
		}
		limit := 20
		if v := q.Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil && i > 0 && i <= 100 {
				limit = i
			}
		}
		f.Limit = limit
		f.Offset = (page - 1) * limit

		recs, total, err := d.Store.BrowseListings(req.Context(), f)
		if err != nil {
			log.Printf("[WARN] listings browse failed: %v", err)
			writeErr(w, req, http.StatusInternalServerError, "listing lookup failed", err.Error(), !d.Production)
			return
		}
		render.JSON(w, req, map[string]any{
			"success": true,
			"data":    listingViews(recs),
			"pagination": map[string]any{
				"page":        page,
				"limit":       limit,
				"total":       total,
				"total_pages": int(math.Ceil(float64(total) / float64(limit))),
			},
		})
	})

	r.Get("/api/mls/listings/{listingKey}", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "listingKey")
		rec, err := d.Store.GetListing(req.Context(), key)
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, req, http.StatusNotFound, "Property not found", "", false)
			return
		}
		if err != nil {
			writeErr(w, req, http.StatusInternalServerError, "listing lookup failed", err.Error(), !d.Production)
			return
		}
		render.JSON(w, req, map[string]any{"success": true, "data": listingView(rec)})
	})

	// Admin bulk delete; an empty id list clears the whole local cache.
	r.Delete("/api/mls/listings", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		if req.Body != nil {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				writeErr(w, req, http.StatusBadRequest, "invalid JSON body", err.Error(), !d.Production)
				return
			}
		}
		var (
			removed int64
			err     error
		)
		if len(body.IDs) == 0 {
			removed, err = d.Store.DeleteAllListings(req.Context())
		} else {
			removed, err = d.Store.DeleteListings(req.Context(), body.IDs)
		}
		if err != nil {
			writeErr(w, req, http.StatusInternalServerError, "delete failed", err.Error(), !d.Production)
			return
		}
		render.JSON(w, req, map[string]any{"success": true, "deleted": removed})
	})
}
