package httpapi

import (
	"context"
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
	"github.com/yourorg/listings-api/internal/store"
	syncer "github.com/yourorg/listings-api/internal/sync"
)

type stubClient struct{ listings []ampre.Listing }

func (s *stubClient) FetchListings(_ context.Context, q ampre.Query) ([]ampre.Listing, int, error) {
	if q.Values().Get("$skip") != "" && q.Values().Get("$skip") != "0" {
		return nil, -1, nil
	}
	return s.listings, -1, nil
}

type stubStore struct{ records map[string]store.UpsertInput }

func (s *stubStore) UpsertListing(_ context.Context, in store.UpsertInput) (bool, error) {
	_, existed := s.records[in.ListingKey]
	s.records[in.ListingKey] = in
	return existed, nil
}
func (s *stubStore) MarkSyncFailed(context.Context, string, string) error  { return nil }
func (s *stubStore) SetPrimaryImage(context.Context, string, string) error { return nil }
func (s *stubStore) GetSetting(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (s *stubStore) PutSetting(context.Context, string, string) error { return nil }

func syncRouter(t *testing.T) (*chi.Mux, *syncer.Queue, context.CancelFunc) {
	t.Helper()
	orch := &syncer.Orchestrator{
		Client: &stubClient{listings: []ampre.Listing{{
			ListingKey: "A1", City: "Toronto", ListPrice: 1, TransactionType: "For Sale",
		}}},
		Store: &stubStore{records: map[string]store.UpsertInput{}},
	}
	q := syncer.NewQueue(orch, 4)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	r := chi.NewRouter()
	RegisterSync(r, SyncDeps{Queue: q})
	return r, q, cancel
}

func TestSyncTriggerReturnsJobID(t *testing.T) {
	router, q, cancel := syncRouter(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/mls/sync",
		strings.NewReader(`{"mode":"full","limit":100}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, "admin trigger returns immediately")

	var resp struct {
		Success bool   `json:"success"`
		JobID   string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.JobID)

	// job becomes observable through the status endpoint
	deadline := time.After(2 * time.Second)
	for {
		st, ok := q.Status(resp.JobID)
		require.True(t, ok)
		if st.State == syncer.JobDone {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck in state %q", st.State)
		case <-time.After(5 * time.Millisecond):
		}
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/api/mls/sync/jobs/"+resp.JobID, nil)
	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)

	var statusResp struct {
		Job syncer.JobStatus `json:"job"`
	}
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &statusResp))
	assert.Equal(t, syncer.JobDone, statusResp.Job.State)
	require.NotNil(t, statusResp.Job.Result)
	assert.Equal(t, 1, statusResp.Job.Result.Synced)
}

func TestSyncRejectsUnknownMode(t *testing.T) {
	router, _, cancel := syncRouter(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/mls/sync",
		strings.NewReader(`{"mode":"sideways"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTargetedSyncRequiresKeys(t *testing.T) {
	router, _, cancel := syncRouter(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/mls/sync/targeted", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncJobNotFound(t *testing.T) {
	router, _, cancel := syncRouter(t)
	defer cancel()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mls/sync/jobs/ffffffff", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
