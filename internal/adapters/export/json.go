package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"bank_reviews/internal/domain"
)

// JSONWriter streams records as one JSON array into <path>.partial and
// renames it to path on Close. A run killed before Close leaves the
// .partial file behind with every batch appended so far.
type JSONWriter struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	n      int
	closed bool
}

func NewJSON(path string) (*JSONWriter, error) {
	f, err := os.Create(path + ".partial")
	if err != nil {
		return nil, fmt.Errorf("create json output: %w", err)
	}
	if _, err := f.WriteString("["); err != nil {
		f.Close()
		return nil, fmt.Errorf("write json output: %w", err)
	}
	return &JSONWriter{path: path, f: f}, nil
}

func (w *JSONWriter) Append(_ context.Context, recs []domain.ReviewRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("json output closed")
	}
	for _, r := range recs {
		b, err := json.MarshalIndent(r, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		sep := ",\n  "
		if w.n == 0 {
			sep = "\n  "
		}
		if _, err := w.f.WriteString(sep); err != nil {
			return fmt.Errorf("write json output: %w", err)
		}
		if _, err := w.f.Write(b); err != nil {
			return fmt.Errorf("write json output: %w", err)
		}
		w.n++
	}
	return w.f.Sync()
}

// Close terminates the array and moves the file into place.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	tail := "\n]\n"
	if w.n == 0 {
		tail = "]\n"
	}
	_, werr := w.f.WriteString(tail)
	cerr := w.f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("finish json output: %w", err)
	}
	if err := os.Rename(w.path+".partial", w.path); err != nil {
		return fmt.Errorf("finish json output: %w", err)
	}
	return nil
}
