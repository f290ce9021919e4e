package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/yourorg/listings-api/internal/store"
)

// ListingView is the page-ready JSON shape of one stored listing.
type ListingView struct {
	ListingKey      string   `json:"listing_key"`
	Address         string   `json:"address"`
	UnitNumber      string   `json:"unit_number,omitempty"`
	City            string   `json:"city"`
	Province        string   `json:"province"`
	PostalCode      string   `json:"postal_code"`
	ListPrice       *float64 `json:"list_price"`
	TransactionType string   `json:"transaction_type"`
	PropertyType    string   `json:"property_type"`
	PropertySubType string   `json:"property_sub_type,omitempty"`
	Bedrooms        *int64   `json:"bedrooms"`
	Bathrooms       *int64   `json:"bathrooms"`
	LivingArea      *float64 `json:"living_area"`
	Status          string   `json:"status"`
	PublicRemarks   string   `json:"public_remarks,omitempty"`
	PrimaryImageURL string   `json:"primary_image_url,omitempty"`
	LastSyncedAt    *string  `json:"last_synced_at,omitempty"`
	SyncFailed      bool     `json:"sync_failed"`
	SyncError       string   `json:"sync_error,omitempty"`
}

func listingView(rec store.ListingRecord) ListingView {
	v := ListingView{
		ListingKey:      rec.ListingKey,
		Address:         joinAddress(rec.StreetNumber, rec.StreetName, rec.StreetSuffix),
		UnitNumber:      rec.UnitNumber,
		City:            rec.City,
		Province:        rec.Province,
		PostalCode:      rec.PostalCode,
		TransactionType: rec.TransactionType,
		PropertyType:    rec.PropertyType,
		PropertySubType: rec.PropertySubType,
		Status:          rec.Status,
		PublicRemarks:   rec.PublicRemarks,
		SyncFailed:      rec.SyncFailed,
	}
	if rec.ListPrice.Valid {
		p := rec.ListPrice.Float64
		v.ListPrice = &p
	}
	if rec.Bedrooms.Valid {
		b := rec.Bedrooms.Int64
		v.Bedrooms = &b
	}
	if rec.Bathrooms.Valid {
		b := rec.Bathrooms.Int64
		v.Bathrooms = &b
	}
	if rec.LivingArea.Valid {
		a := rec.LivingArea.Float64
		v.LivingArea = &a
	}
	if rec.PrimaryImageURL.Valid {
		v.PrimaryImageURL = rec.PrimaryImageURL.String
	}
	if rec.LastSyncedAt.Valid {
		ts := rec.LastSyncedAt.Time.UTC().Format(time.RFC3339)
		v.LastSyncedAt = &ts
	}
	if rec.SyncError.Valid {
		v.SyncError = rec.SyncError.String
	}
	return v
}

func listingViews(recs []store.ListingRecord) []ListingView {
	out := make([]ListingView, 0, len(recs))
	for _, r := range recs {
		out = append(out, listingView(r))
	}
	return out
}

func joinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, " ")
}

// writeErr emits the failure envelope. Detail is included only when the
// handler was built outside production.
func writeErr(w http.ResponseWriter, req *http.Request, status int, msg, detail string, includeDetail bool) {
	body := map[string]any{"success": false, "error": msg}
	if includeDetail && detail != "" {
		body["detail"] = detail
	}
	render.Status(req, status)
	render.JSON(w, req, body)
}
