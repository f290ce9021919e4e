package sync

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/store"
)

type fakeClient struct {
	listings []ampre.Listing
	queries  []string // captured $filter values
	err      error
}

func (f *fakeClient) FetchListings(_ context.Context, q ampre.Query) ([]ampre.Listing, int, error) {
	f.queries = append(f.queries, q.Values().Get("$filter"))
	if f.err != nil {
		return nil, 0, f.err
	}
	top := len(f.listings)
	if v := q.Values().Get("$top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n < top {
			top = n
		}
	}
	skip := 0
	if v := q.Values().Get("$skip"); v != "" {
		skip, _ = strconv.Atoi(v)
	}
	if skip >= len(f.listings) {
		return nil, 0, nil
	}
	end := skip + top
	if end > len(f.listings) {
		end = len(f.listings)
	}
	return f.listings[skip:end], -1, nil
}

type fakeStore struct {
	records  map[string]store.UpsertInput
	failures map[string]string
	settings map[string]string
	images   map[string]string
	upserts  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:  map[string]store.UpsertInput{},
		failures: map[string]string{},
		settings: map[string]string{},
		images:   map[string]string{},
	}
}

func (f *fakeStore) UpsertListing(_ context.Context, in store.UpsertInput) (bool, error) {
	f.upserts++
	_, existed := f.records[in.ListingKey]
	f.records[in.ListingKey] = in
	delete(f.failures, in.ListingKey)
	return existed, nil
}

func (f *fakeStore) MarkSyncFailed(_ context.Context, key, msg string) error {
	f.failures[key] = msg
	return nil
}

func (f *fakeStore) SetPrimaryImage(_ context.Context, key, url string) error {
	f.images[key] = url
	return nil
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := f.settings[key]
	return v, ok, nil
}

func (f *fakeStore) PutSetting(_ context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func listing(key, city string, price float64) ampre.Listing {
	return ampre.Listing{
		ListingKey:      key,
		StreetName:      "Queen",
		City:            city,
		StateOrProvince: "ON",
		ListPrice:       price,
		TransactionType: "For Sale",
		StandardStatus:  "Active",
	}
}

func TestFullSyncCountsPerRecordOutcomes(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{
		listing("A1", "Toronto", 500000),
		listing("", "Toronto", 600000), // fails validation: no listing key
		listing("C3", "Ottawa", 700000),
	}}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}

	res, err := o.FullSync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2, Updated: 0, Failed: 1}, res)
	assert.Len(t, st.records, 2)
	assert.Contains(t, st.records, "A1")
	assert.Contains(t, st.records, "C3")
}

func TestFullSyncRecordsFailureWithError(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{
		{ListingKey: "B2", ListPrice: -1},
	}}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}

	res, err := o.FullSync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, st.failures["B2"], "failed flag always carries an error string")
}

func TestFullSyncIsIdempotent(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{
		listing("A1", "Toronto", 500000),
		listing("B2", "Toronto", 600000),
	}}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}
	ctx := context.Background()

	first, err := o.FullSync(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2}, first)
	snapshot := map[string]store.UpsertInput{}
	for k, v := range st.records {
		snapshot[k] = v
	}

	second, err := o.FullSync(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2}, second)
	assert.Equal(t, snapshot, st.records, "re-running the same sync leaves the same state")
}

func TestFullSyncPagesUpToLimit(t *testing.T) {
	var many []ampre.Listing
	for i := 0; i < 250; i++ {
		many = append(many, listing(string(rune('A'+i%26))+string(rune('0'+i/26)), "Toronto", 100000))
	}
	client := &fakeClient{listings: many}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st, PageSize: 100}

	_, err := o.FullSync(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, 150, st.upserts, "stops at the caller's cap")
}

func TestFullSyncStopsOnPageError(t *testing.T) {
	client := &fakeClient{err: errors.New("gateway down")}
	o := &Orchestrator{Client: client, Store: newFakeStore()}

	_, err := o.FullSync(context.Background(), 0)
	assert.Error(t, err)
}

func TestIncrementalSyncUsesWatermark(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{listing("A1", "Toronto", 500000)}}
	st := newFakeStore()
	st.settings[LastSyncSettingKey] = "2025-08-01T00:00:00Z"
	o := &Orchestrator{Client: client, Store: st}

	_, err := o.IncrementalSync(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, client.queries)
	assert.Contains(t, client.queries[0], "ModificationTimestamp ge 2025-08-01T00:00:00Z")

	// watermark advanced past the old value
	updated, err := time.Parse(time.RFC3339, st.settings[LastSyncSettingKey])
	require.NoError(t, err)
	assert.True(t, updated.After(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIncrementalSyncFirstRunHasNoFilter(t *testing.T) {
	client := &fakeClient{}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}

	_, err := o.IncrementalSync(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, client.queries)
	assert.NotContains(t, client.queries[0], "ModificationTimestamp")
	assert.NotEmpty(t, st.settings[LastSyncSettingKey], "watermark written after first run")
}

func TestIncrementalSyncKeepsWatermarkOnPageError(t *testing.T) {
	client := &fakeClient{err: errors.New("gateway down")}
	st := newFakeStore()
	st.settings[LastSyncSettingKey] = "2025-08-01T00:00:00Z"
	o := &Orchestrator{Client: client, Store: st}

	_, err := o.IncrementalSync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "2025-08-01T00:00:00Z", st.settings[LastSyncSettingKey])
}

func TestTargetedSyncFiltersByKeys(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{listing("A1", "Toronto", 500000)}}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}

	res, err := o.TargetedSync(context.Background(), []string{"A1"})
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)
	require.NotEmpty(t, client.queries)
	assert.Contains(t, client.queries[0], "ListingKey eq 'A1'")
}

func TestTargetedSyncMarksMissingKeys(t *testing.T) {
	client := &fakeClient{listings: []ampre.Listing{listing("A1", "Toronto", 500000)}}
	st := newFakeStore()
	o := &Orchestrator{Client: client, Store: st}

	res, err := o.TargetedSync(context.Background(), []string{"A1", "GONE"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, st.failures["GONE"])
}

func TestTargetedSyncRequiresKeys(t *testing.T) {
	o := &Orchestrator{Client: &fakeClient{}, Store: newFakeStore()}
	_, err := o.TargetedSync(context.Background(), nil)
	assert.Error(t, err)
}

func TestMapListingValidation(t *testing.T) {
	_, err := MapListing(ampre.Listing{})
	assert.Error(t, err, "missing listing key")

	_, err = MapListing(ampre.Listing{ListingKey: "A", ListPrice: -5})
	assert.Error(t, err, "negative price")

	in, err := MapListing(listing("A1", "Toronto", 500000))
	require.NoError(t, err)
	assert.Equal(t, "A1", in.ListingKey)
	assert.True(t, in.ListPrice.Valid)
	assert.Equal(t, float64(500000), in.ListPrice.Float64)
}
