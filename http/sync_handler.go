package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	syncer "github.com/yourorg/listings-api/internal/sync"
)

type SyncDeps struct {
	Queue      *syncer.Queue
	Production bool
}

func RegisterSync(r chi.Router, d SyncDeps) {
	// Enqueue a full or incremental run; returns the job ID immediately.
	r.Post("/api/mls/sync", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Mode  string `json:"mode"`
			Limit int    `json:"limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeErr(w, req, http.StatusBadRequest, "invalid JSON body", err.Error(), !d.Production)
			return
		}
		var (
			id  string
			err error
		)
		switch body.Mode {
		case "", "full":
			id, err = d.Queue.EnqueueFull(body.Limit)
		case "incremental":
			id, err = d.Queue.EnqueueIncremental()
		default:
			writeErr(w, req, http.StatusBadRequest, "mode must be full or incremental", "", false)
			return
		}
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, syncer.ErrQueueFull) {
				status = http.StatusTooManyRequests
			}
			writeErr(w, req, status, "sync not enqueued", err.Error(), !d.Production)
			return
		}
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"success": true, "job_id": id})
	})

	// Admin "resync these properties" action.
	r.Post("/api/mls/sync/targeted", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ListingKeys []string `json:"listing_keys"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeErr(w, req, http.StatusBadRequest, "invalid JSON body", err.Error(), !d.Production)
			return
		}
		if len(body.ListingKeys) == 0 {
			writeErr(w, req, http.StatusBadRequest, "listing_keys is required", "", false)
			return
		}
		id, err := d.Queue.EnqueueTargeted(body.ListingKeys)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, syncer.ErrQueueFull) {
				status = http.StatusTooManyRequests
			}
			writeErr(w, req, status, "sync not enqueued", err.Error(), !d.Production)
			return
		}
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"success": true, "job_id": id})
	})

	r.Get("/api/mls/sync/jobs/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		st, ok := d.Queue.Status(chi.URLParam(req, "jobID"))
		if !ok {
			writeErr(w, req, http.StatusNotFound, "job not found", "", false)
			return
		}
		render.JSON(w, req, map[string]any{"success": true, "job": st})
	})
}
