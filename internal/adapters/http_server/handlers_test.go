package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "bank_reviews/internal/adapters/http_server"
	"bank_reviews/internal/domain"
)

type fakeReader struct {
	lastQ    domain.ReviewsQuery
	lastBank *string
	page     domain.ReviewsPage
	stats    []domain.BankStats
	err      error
}

func (f *fakeReader) ListReviews(_ context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	f.lastQ = q
	return f.page, f.err
}

func (f *fakeReader) Stats(_ context.Context, bank *string) ([]domain.BankStats, error) {
	f.lastBank = bank
	return f.stats, f.err
}

func newTestServer(f *fakeReader) http.Handler {
	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{Q: f})
	return srv.Mux()
}

func do(h http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListReviews_FiltersAndETag(t *testing.T) {
	d := "2024-06-14"
	f := &fakeReader{page: domain.ReviewsPage{Items: []domain.ReviewRecord{
		{AgencyName: "CIH Bank Maarif", Bank: "CIH Bank", City: "Casablanca", Rating: 4, Date: &d, Language: "fr", URL: "u"},
	}}}
	h := newTestServer(f)

	rr := do(h, "/v1/reviews?bank=CIH%20Bank&city=Casablanca&limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if f.lastQ.Bank == nil || *f.lastQ.Bank != "CIH Bank" || f.lastQ.City == nil || f.lastQ.Limit != 5 {
		t.Fatalf("query not forwarded: %+v", f.lastQ)
	}
	var body struct {
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || body.Items[0]["agency_name"] != "CIH Bank Maarif" || body.Items[0]["date"] != d {
		t.Fatalf("body: %+v", body)
	}

	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	rr2 := do(h, "/v1/reviews?bank=CIH%20Bank&city=Casablanca&limit=5", map[string]string{"If-None-Match": etag})
	if rr2.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", rr2.Code)
	}
}

func TestListReviews_DefaultsAndLimitBounds(t *testing.T) {
	f := &fakeReader{}
	h := newTestServer(f)

	rr := do(h, "/v1/reviews", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if f.lastQ.Limit != 50 || f.lastQ.Bank != nil || f.lastQ.City != nil {
		t.Fatalf("defaults: %+v", f.lastQ)
	}
	if got := rr.Body.String(); got != `{"items":[],"count":0}` {
		t.Fatalf("empty body: %s", got)
	}

	for _, l := range []string{"0", "201", "abc"} {
		if rr := do(h, "/v1/reviews?limit="+l, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: want 400, got %d", l, rr.Code)
		}
	}
}

func TestStats(t *testing.T) {
	f := &fakeReader{stats: []domain.BankStats{{Bank: "CIH Bank", City: "Rabat", Branches: 2, Reviews: 9, AvgRating: 3.4}}}
	h := newTestServer(f)

	rr := do(h, "/v1/stats?bank=CIH%20Bank", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if f.lastBank == nil || *f.lastBank != "CIH Bank" {
		t.Fatalf("bank filter: %v", f.lastBank)
	}
	var body struct {
		Items []domain.BankStats `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Items) != 1 || body.Items[0].Reviews != 9 {
		t.Fatalf("body: %+v", body)
	}
}

func TestBackendErrorIsProblem(t *testing.T) {
	h := newTestServer(&fakeReader{err: errors.New("db down")})
	rr := do(h, "/v1/stats", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestHealthz(t *testing.T) {
	rr := do(newTestServer(&fakeReader{}), "/healthz", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}
