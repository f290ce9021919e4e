package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listings-api/internal/images"
)

type ImagesDeps struct {
	Resolver   *images.Resolver
	Production bool
}

type imagesRequest struct {
	ListingKeys    []string `json:"listing_keys"`
	ImageSize      string   `json:"image_size"`
	Priority       string   `json:"priority"`       // "high" stretches the TTL
	CacheDuration  int      `json:"cache_duration"` // seconds, optional override
	EnableFallback *bool    `json:"enable_fallback"`
	Batch          bool     `json:"batch"` // accepted for compatibility; resolution is always batched
}

func RegisterImages(r chi.Router, d ImagesDeps) {
	r.Post("/api/property-images", func(w http.ResponseWriter, req *http.Request) {
		var body imagesRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeErr(w, req, http.StatusBadRequest, "invalid JSON body", err.Error(), !d.Production)
			return
		}
		if len(body.ListingKeys) == 0 {
			writeErr(w, req, http.StatusBadRequest, "listing_keys is required", "", false)
			return
		}
		fallback := true
		if body.EnableFallback != nil {
			fallback = *body.EnableFallback
		}
		resolveReq := images.Request{
			Keys:           body.ListingKeys,
			SizeVariant:    body.ImageSize,
			HighPriority:   body.Priority == "high",
			EnableFallback: fallback,
		}
		if body.CacheDuration > 0 {
			resolveReq.CacheTTL = time.Duration(body.CacheDuration) * time.Second
		}
		resolved, meta, err := d.Resolver.Resolve(req.Context(), resolveReq)
		if err != nil {
			if errors.Is(err, images.ErrBatchTooLarge) {
				writeErr(w, req, http.StatusBadRequest, "too many listing keys", "", false)
				return
			}
			writeErr(w, req, http.StatusInternalServerError, "image resolution failed", err.Error(), !d.Production)
			return
		}
		render.JSON(w, req, map[string]any{
			"success":  true,
			"images":   resolved,
			"metadata": meta,
		})
	})

	// Admin cache invalidation, keyed by listing and size variant.
	r.Delete("/api/property-images/cache", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ListingKeys []string `json:"listing_keys"`
			ImageSizes  []string `json:"image_sizes"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeErr(w, req, http.StatusBadRequest, "invalid JSON body", err.Error(), !d.Production)
			return
		}
		if len(body.ListingKeys) == 0 {
			writeErr(w, req, http.StatusBadRequest, "listing_keys is required", "", false)
			return
		}
		removed, err := d.Resolver.Invalidate(req.Context(), body.ListingKeys, body.ImageSizes)
		if err != nil {
			writeErr(w, req, http.StatusInternalServerError, "cache invalidation failed", err.Error(), !d.Production)
			return
		}
		render.JSON(w, req, map[string]any{"success": true, "invalidated": removed})
	})
}
