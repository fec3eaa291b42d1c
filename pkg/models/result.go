package models

// Result records the outcome of one (store, product) lookup, success or failure.
// A completed job carries exactly one Result per pair attempted; failed pairs are
// distinguishable by ErrorMessage being set and IsExactMatch false.
type Result struct {
	ProductID    string   `json:"product_id"`
	ProductName  string   `json:"product_name"`
	Brand        string   `json:"brand"`
	StoreName    string   `json:"store_name"`
	FoundName    *string  `json:"found_name,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Availability *string  `json:"availability,omitempty"`
	IsExactMatch bool     `json:"is_exact_match"`
	MatchNote    *string  `json:"match_note,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
}
