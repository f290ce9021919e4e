package ampre

import (
	"encoding/json"
	"fmt"
	"sort"
)

// stringNumber accepts string or number JSON and stores the textual form.
// Street numbers in particular arrive as either.
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

// odataPage is the envelope every gateway resource returns.
type odataPage[T any] struct {
	Count *int `json:"@odata.count"`
	Value []T  `json:"value"`
}

// ParseListingPayload decodes a /Property page. The count is -1 when the
// page was fetched without $count.
func ParseListingPayload(raw []byte) ([]Listing, int, error) {
	var page odataPage[Listing]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, 0, fmt.Errorf("ampre listing payload: %w", err)
	}
	count := -1
	if page.Count != nil {
		count = *page.Count
	}
	return page.Value, count, nil
}

// ParseMediaPayload decodes a /Media page, dropping records without a URL
// and keeping per-listing Order stable.
func ParseMediaPayload(raw []byte) ([]Media, error) {
	var page odataPage[Media]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("ampre media payload: %w", err)
	}
	out := make([]Media, 0, len(page.Value))
	for _, m := range page.Value {
		if m.MediaURL == "" {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ResourceRecordKey != out[j].ResourceRecordKey {
			return out[i].ResourceRecordKey < out[j].ResourceRecordKey
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// GroupMediaByListing buckets media records under their listing key,
// preserving order within each bucket.
func GroupMediaByListing(media []Media) map[string][]Media {
	out := make(map[string][]Media)
	for _, m := range media {
		out[m.ResourceRecordKey] = append(out[m.ResourceRecordKey], m)
	}
	return out
}
