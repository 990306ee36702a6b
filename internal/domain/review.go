package domain

// Query is one (bank, city) unit of work.
type Query struct {
	Bank string
	City string
}

type BranchCandidate struct {
	Name    string
	Bank    string
	City    string
	Address string
	URL     string // dedup key within a query and across the run
}

// RawReview is what a review entry yields before enrichment. Never persisted.
type RawReview struct {
	Text       string
	Rating     int
	TimePhrase string
	Author     string // opaque, used for logs only
}

type ReviewRecord struct {
	AgencyName  string  `json:"agency_name"`
	Bank        string  `json:"bank"`
	Location    string  `json:"location"`
	City        string  `json:"city"`
	Text        string  `json:"text"`
	Rating      int     `json:"rating"`
	Date        *string `json:"date"` // YYYY-MM-DD, nil when the relative phrase was not understood
	Language    string  `json:"language"`
	URL         string  `json:"url"`
	Fingerprint string  `json:"-"`
}
