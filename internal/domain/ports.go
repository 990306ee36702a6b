package domain

import "context"

type Role string

const (
	RoleListing Role = "listing"
	RoleReview  Role = "review"
)

// Entry is one visible item read from the session. Listing entries fill
// Name/Address/URL, review entries fill Text/Rating/TimePhrase/Author.
// Values are raw strings as rendered; parsing happens in the app layer.
type Entry struct {
	Name    string
	Address string
	URL     string

	Text       string
	Rating     string
	TimePhrase string
	Author     string
}

// Session drives one stateful browsing surface. It is not safe for concurrent use.
type Session interface {
	// Navigate opens a URL, or issues a search when target is not a URL.
	Navigate(ctx context.Context, target string) error
	// WaitReady blocks until entries of role can be read. For RoleReview it
	// also opens the reviews panel of the current place.
	// Returns ErrTransientRender on timeout.
	WaitReady(ctx context.Context, role Role) error
	ReadEntries(ctx context.Context, role Role) ([]Entry, error)
	// LoadMore scrolls or paginates; ErrEndOfFeed when nothing is left.
	LoadMore(ctx context.Context, role Role) error
	Close() error
}

type SessionProvider interface {
	Open(ctx context.Context) (Session, error)
}

type RecordSink interface {
	Append(ctx context.Context, recs []ReviewRecord) error
}

type FailureLog interface {
	LogFailure(ctx context.Context, f WorkUnitFailure) error
}

type ReviewRepository interface {
	// Write paths
	UpsertReviews(ctx context.Context, recs []ReviewRecord) error
	LogFailure(ctx context.Context, f WorkUnitFailure) error

	// Read paths
	ListReviews(ctx context.Context, q ReviewsQuery) (ReviewsPage, error)
	BankStats(ctx context.Context, bank *string) ([]BankStats, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models & queries
type ReviewsQuery struct {
	Bank  *string
	City  *string
	Limit int
}

type ReviewsPage struct {
	Items []ReviewRecord
}

type BankStats struct {
	Bank      string  `json:"bank"`
	City      string  `json:"city"`
	Branches  int     `json:"branches"`
	Reviews   int     `json:"reviews"`
	AvgRating float64 `json:"avg_rating"`
}
