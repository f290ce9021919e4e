package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/cache"
	"github.com/yourorg/listings-api/internal/images"
)

func imagesRouter(media map[string][]ampre.Media) http.Handler {
	r := chi.NewRouter()
	RegisterImages(r, ImagesDeps{Resolver: &images.Resolver{
		Client:     &fakeMedia{media: media},
		Cache:      cache.NewMemoryWithClock(time.Now),
		DefaultTTL: time.Hour,
	}})
	return r
}

func TestImagesBatchPartialResult(t *testing.T) {
	router := imagesRouter(map[string][]ampre.Media{
		"A": {{ResourceRecordKey: "A", MediaURL: "https://cdn.example.com/a.jpg", Order: 0}},
	})

	body := `{"listing_keys":["A","B"],"enable_fallback":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/property-images", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                       `json:"success"`
		Images  map[string]images.Resolved `json:"images"`
		Meta    images.Metadata            `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Images, 2)

	a := resp.Images["A"]
	assert.Equal(t, images.StatusSuccess, a.Status)
	require.NotNil(t, a.ImageURL)
	assert.Equal(t, "https://cdn.example.com/a.jpg", *a.ImageURL)

	b := resp.Images["B"]
	assert.Equal(t, images.StatusNoImage, b.Status)
	assert.Nil(t, b.ImageURL)

	assert.Equal(t, 2, resp.Meta.Requested)
	assert.Equal(t, 1, resp.Meta.Resolved)
}

func TestImagesFallbackEnabledByDefault(t *testing.T) {
	router := imagesRouter(map[string][]ampre.Media{})

	req := httptest.NewRequest(http.MethodPost, "/api/property-images",
		strings.NewReader(`{"listing_keys":["X"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Images map[string]images.Resolved `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	x := resp.Images["X"]
	assert.Equal(t, images.StatusFallback, x.Status)
	assert.True(t, x.IsPlaceholder)
	require.NotNil(t, x.ImageURL)
}

func TestImagesRequiresKeys(t *testing.T) {
	router := imagesRouter(map[string][]ampre.Media{})

	req := httptest.NewRequest(http.MethodPost, "/api/property-images", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImagesCacheInvalidation(t *testing.T) {
	c := cache.NewMemoryWithClock(time.Now)
	resolver := &images.Resolver{
		Client: &fakeMedia{media: map[string][]ampre.Media{
			"A": {{ResourceRecordKey: "A", MediaURL: "https://cdn.example.com/a.jpg", Order: 0}},
		}},
		Cache:      c,
		DefaultTTL: time.Hour,
	}
	r := chi.NewRouter()
	RegisterImages(r, ImagesDeps{Resolver: resolver})

	// warm the cache
	warm := httptest.NewRequest(http.MethodPost, "/api/property-images",
		strings.NewReader(`{"listing_keys":["A"],"image_size":"large"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, warm)
	require.Equal(t, http.StatusOK, rec.Code)

	del := httptest.NewRequest(http.MethodDelete, "/api/property-images/cache",
		strings.NewReader(`{"listing_keys":["A"],"image_sizes":["large"]}`))
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, del)
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp struct {
		Success     bool `json:"success"`
		Invalidated int  `json:"invalidated"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Invalidated)
}
