package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTransientRender means the page or element was not ready in time; callers retry it.
	ErrTransientRender = errors.New("page not ready")
	// ErrEndOfFeed is returned by LoadMore when the surface reports there is nothing left to load.
	ErrEndOfFeed          = errors.New("end of feed")
	ErrMalformedEntry     = errors.New("malformed entry")
	ErrSessionUnavailable = errors.New("session unavailable")
)

type UnitKind string

const (
	UnitQuery  UnitKind = "query"
	UnitBranch UnitKind = "branch"
)

// WorkUnitFailure records a query or branch that could not be completed.
// It is never fatal to a run.
type WorkUnitFailure struct {
	Kind   UnitKind
	Bank   string
	City   string
	Branch string
	URL    string
	Err    error
}

func (f *WorkUnitFailure) Error() string {
	if f.Kind == UnitBranch {
		return fmt.Sprintf("branch %q (%s): %v", f.Branch, f.URL, f.Err)
	}
	return fmt.Sprintf("query %q in %q: %v", f.Bank, f.City, f.Err)
}

func (f *WorkUnitFailure) Unwrap() error { return f.Err }
