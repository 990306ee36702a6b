package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"bank_reviews/internal/domain"
)

var csvHeader = []string{"agency_name", "bank", "location", "city", "text", "rating", "date", "language", "url"}

// CSVWriter appends one row per record after a fixed header. Rows are
// flushed per batch, so the file is usable at any point of the run.
type CSVWriter struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	closed bool
}

func NewCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv output: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	return &CSVWriter{f: f, w: w}, nil
}

func (c *CSVWriter) Append(_ context.Context, recs []domain.ReviewRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("csv output closed")
	}
	for _, r := range recs {
		date := ""
		if r.Date != nil {
			date = *r.Date
		}
		row := []string{r.AgencyName, r.Bank, r.Location, r.City, r.Text, strconv.Itoa(r.Rating), date, r.Language, r.URL}
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return c.f.Sync()
}

func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}
