// Package export writes review records to local files as the crawl runs.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bank_reviews/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Sink is a RecordSink that must be closed to finalize its output.
type Sink interface {
	domain.RecordSink
	Close() error
}

// New picks the writer from the file extension: .json or .csv.
func New(path string) (Sink, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSON(path)
	case ".csv":
		return NewCSV(path)
	default:
		return nil, fmt.Errorf("%w: %q (want .json or .csv)", ErrUnsupportedFormat, path)
	}
}

// Tee fans every batch out to all sinks. An error from one sink does not
// stop the others.
type Tee []domain.RecordSink

func (t Tee) Append(ctx context.Context, recs []domain.ReviewRecord) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
