package ampre

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query builds the OData query string sent to the AMPRE gateway.
// It is a value type: every method returns a derived copy, so a base
// query can be shared and extended by independent callers without
// predicates leaking between them.
type Query struct {
	filters []string
	selects []string
	top     int
	skip    int
	orderBy string
	count   bool
}

func NewQuery() Query { return Query{} }

func (q Query) clone() Query {
	out := q
	out.filters = append([]string(nil), q.filters...)
	out.selects = append([]string(nil), q.selects...)
	return out
}

// Eq adds an equality predicate (AND-combined with existing predicates).
func (q Query) Eq(field string, value any) Query {
	out := q.clone()
	out.filters = append(out.filters, fmt.Sprintf("%s eq %s", field, literal(value)))
	return out
}

// Ge adds a greater-or-equal predicate.
func (q Query) Ge(field string, value any) Query {
	out := q.clone()
	out.filters = append(out.filters, fmt.Sprintf("%s ge %s", field, literal(value)))
	return out
}

// Le adds a less-or-equal predicate.
func (q Query) Le(field string, value any) Query {
	out := q.clone()
	out.filters = append(out.filters, fmt.Sprintf("%s le %s", field, literal(value)))
	return out
}

// Contains adds a substring predicate.
func (q Query) Contains(field, substr string) Query {
	out := q.clone()
	out.filters = append(out.filters, fmt.Sprintf("contains(%s,%s)", field, literal(substr)))
	return out
}

// In adds a grouped disjunction: (field eq v1 or field eq v2 or ...).
func (q Query) In(field string, values ...any) Query {
	if len(values) == 0 {
		return q
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s eq %s", field, literal(v)))
	}
	out := q.clone()
	out.filters = append(out.filters, "("+strings.Join(parts, " or ")+")")
	return out
}

// Select restricts the returned fields.
func (q Query) Select(fields ...string) Query {
	out := q.clone()
	out.selects = append(out.selects, fields...)
	return out
}

func (q Query) Top(n int) Query {
	out := q.clone()
	out.top = n
	return out
}

func (q Query) Skip(n int) Query {
	out := q.clone()
	out.skip = n
	return out
}

// OrderBy sets the ordering clause, e.g. "ModificationTimestamp desc".
func (q Query) OrderBy(clause string) Query {
	out := q.clone()
	out.orderBy = clause
	return out
}

// WithCount asks the gateway to include the total match count.
func (q Query) WithCount() Query {
	out := q.clone()
	out.count = true
	return out
}

// Values encodes the query as OData system query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.filters) > 0 {
		v.Set("$filter", strings.Join(q.filters, " and "))
	}
	if len(q.selects) > 0 {
		v.Set("$select", strings.Join(q.selects, ","))
	}
	if q.top > 0 {
		v.Set("$top", strconv.Itoa(q.top))
	}
	if q.skip > 0 {
		v.Set("$skip", strconv.Itoa(q.skip))
	}
	if q.orderBy != "" {
		v.Set("$orderby", q.orderBy)
	}
	if q.count {
		v.Set("$count", "true")
	}
	return v
}

// literal renders a Go value as an OData literal. Strings are quoted with
// embedded single quotes doubled; timestamps are unquoted ISO-8601.
func literal(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
