package ampre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMediaURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ampre https rewritten", "https://example.ampre.ca/img.jpg", "http://example.ampre.ca/img.jpg"},
		{"ampre apex rewritten", "https://ampre.ca/media/1.jpg", "http://ampre.ca/media/1.jpg"},
		{"other host untouched", "https://cdn.example.com/img.jpg", "https://cdn.example.com/img.jpg"},
		{"already http untouched", "http://example.ampre.ca/img.jpg", "http://example.ampre.ca/img.jpg"},
		{"lookalike host untouched", "https://notampre.ca/img.jpg", "https://notampre.ca/img.jpg"},
		{"empty passes through", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeMediaURL(tc.in))
		})
	}
}

func TestPrimaryMediaURL(t *testing.T) {
	media := []Media{
		{ResourceRecordKey: "A", MediaURL: "", Order: 0},
		{ResourceRecordKey: "A", MediaURL: "https://x.ampre.ca/a.jpg", Order: 1},
		{ResourceRecordKey: "A", MediaURL: "https://x.ampre.ca/b.jpg", Order: 2},
	}
	assert.Equal(t, "http://x.ampre.ca/a.jpg", PrimaryMediaURL(media))
	assert.Empty(t, PrimaryMediaURL(nil))
}
