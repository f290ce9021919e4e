package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	httpapi "github.com/yourorg/listings-api/http"
)

type RouterDeps struct {
	Listings httpapi.ListingsDeps
	Sync     httpapi.SyncDeps
	Images   httpapi.ImagesDeps
	Detail   httpapi.DetailDeps
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(100, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterListings(r, d.Listings)
	httpapi.RegisterSync(r, d.Sync)
	httpapi.RegisterImages(r, d.Images)
	httpapi.RegisterDetail(r, d.Detail)

	return r
}
