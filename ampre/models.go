package ampre

import "time"

// Listing is one property record as returned by the gateway's /Property
// resource, reduced to the fields the sync pipeline maps.
type Listing struct {
	ListingKey            string       `json:"ListingKey"`
	StreetNumber          stringNumber `json:"StreetNumber"`
	StreetName            string       `json:"StreetName"`
	StreetSuffix          string       `json:"StreetSuffix"`
	UnitNumber            string       `json:"UnitNumber"`
	City                  string       `json:"City"`
	StateOrProvince       string       `json:"StateOrProvince"`
	PostalCode            string       `json:"PostalCode"`
	ListPrice             float64      `json:"ListPrice"`
	TransactionType       string       `json:"TransactionType"`
	PropertyType          string       `json:"PropertyType"`
	PropertySubType       string       `json:"PropertySubType"`
	BedroomsTotal         int          `json:"BedroomsTotal"`
	BathroomsTotalInteger int          `json:"BathroomsTotalInteger"`
	LivingArea            float64      `json:"LivingArea"`
	StandardStatus        string       `json:"StandardStatus"`
	PublicRemarks         string       `json:"PublicRemarks"`
	ModificationTimestamp time.Time    `json:"ModificationTimestamp"`
}

// SelectFields is the $select list matching the Listing struct; keeping the
// payload narrow keeps page fetches under the body guard.
var SelectFields = []string{
	"ListingKey", "StreetNumber", "StreetName", "StreetSuffix", "UnitNumber",
	"City", "StateOrProvince", "PostalCode", "ListPrice", "TransactionType",
	"PropertyType", "PropertySubType", "BedroomsTotal", "BathroomsTotalInteger",
	"LivingArea", "StandardStatus", "PublicRemarks", "ModificationTimestamp",
}

// Media is one photo record from the /Media resource.
type Media struct {
	MediaKey          string `json:"MediaKey"`
	ResourceRecordKey string `json:"ResourceRecordKey"`
	MediaURL          string `json:"MediaURL"`
	MediaCategory     string `json:"MediaCategory"`
	MediaStatus       string `json:"MediaStatus"`
	ShortDescription  string `json:"ShortDescription"`
	Order             int    `json:"Order"`
	ImageWidth        int    `json:"ImageWidth"`
	ImageHeight       int    `json:"ImageHeight"`
}
