package ampre

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueryFilterEncoding(t *testing.T) {
	q := NewQuery().
		Eq("City", "Toronto").
		Ge("ListPrice", 250000).
		Le("ListPrice", 900000).
		Contains("PublicRemarks", "lake view")

	v := q.Values()
	assert.Equal(t,
		"City eq 'Toronto' and ListPrice ge 250000 and ListPrice le 900000 and contains(PublicRemarks,'lake view')",
		v.Get("$filter"))
}

func TestQueryInGroupsDisjunction(t *testing.T) {
	v := NewQuery().In("ListingKey", "A1", "B2", "C3").Eq("StandardStatus", "Active").Values()
	assert.Equal(t,
		"(ListingKey eq 'A1' or ListingKey eq 'B2' or ListingKey eq 'C3') and StandardStatus eq 'Active'",
		v.Get("$filter"))
}

func TestQueryInEmptyIsNoop(t *testing.T) {
	v := NewQuery().In("ListingKey").Values()
	assert.Empty(t, v.Get("$filter"))
}

func TestQueryEscapesQuotes(t *testing.T) {
	v := NewQuery().Eq("StreetName", "O'Connor").Values()
	assert.Equal(t, "StreetName eq 'O''Connor'", v.Get("$filter"))
}

func TestQueryTimeLiteral(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	v := NewQuery().Ge("ModificationTimestamp", since).Values()
	assert.Equal(t, "ModificationTimestamp ge 2025-06-01T12:30:00Z", v.Get("$filter"))
}

func TestQueryPagingAndOrdering(t *testing.T) {
	v := NewQuery().
		Select("ListingKey", "City").
		Top(50).
		Skip(100).
		OrderBy("ModificationTimestamp desc").
		WithCount().
		Values()

	assert.Equal(t, "ListingKey,City", v.Get("$select"))
	assert.Equal(t, "50", v.Get("$top"))
	assert.Equal(t, "100", v.Get("$skip"))
	assert.Equal(t, "ModificationTimestamp desc", v.Get("$orderby"))
	assert.Equal(t, "true", v.Get("$count"))
}

// Two independent queries derived from one base must not see each other's
// predicates.
func TestQueryDerivationDoesNotLeak(t *testing.T) {
	base := NewQuery().Select("ListingKey").Top(10)

	first := base.Eq("City", "Toronto").Ge("ListPrice", 500000)
	second := base.Eq("TransactionType", "For Lease")

	assert.Equal(t, "City eq 'Toronto' and ListPrice ge 500000", first.Values().Get("$filter"))
	assert.Equal(t, "TransactionType eq 'For Lease'", second.Values().Get("$filter"))
	assert.Empty(t, base.Values().Get("$filter"), "base query must stay clean")
}

func TestQueryDerivationPreservesSharedParts(t *testing.T) {
	base := NewQuery().Select("ListingKey").OrderBy("ListingKey")
	derived := base.Skip(20)

	assert.Equal(t, "ListingKey", derived.Values().Get("$select"))
	assert.Equal(t, "ListingKey", derived.Values().Get("$orderby"))
	assert.Empty(t, base.Values().Get("$skip"))
}
