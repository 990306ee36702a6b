package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// ReviewReader is the read side the handlers need; app.QueryService
// implements it.
type ReviewReader interface {
	ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error)
	Stats(ctx context.Context, bank *string) ([]domain.BankStats, error)
}

type Handlers struct{ Q ReviewReader }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type statsResponse struct {
	Items []domain.BankStats `json:"items"`
}

type reviewsResponse struct {
	Items []domain.ReviewRecord `json:"items"`
	Count int                   `json:"count"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Get("/v1/stats", h.stats)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers 304 when the client already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any, what string) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not encode "+what)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("what", what).Msg("failed to write body")
	}
}

// optParam is nil for a missing or blank query parameter.
func optParam(r *http.Request, k string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(k))
	if v == "" {
		return nil
	}
	return &v
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > maxLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	q := domain.ReviewsQuery{Bank: optParam(r, "bank"), City: optParam(r, "city"), Limit: limit}
	page, err := h.Q.ListReviews(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Msg("list reviews failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "reviews unavailable")
		return
	}
	items := page.Items
	if items == nil {
		items = []domain.ReviewRecord{}
	}
	writeCached(w, r, reviewsResponse{Items: items, Count: len(items)}, "reviews")
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Q.Stats(r.Context(), optParam(r, "bank"))
	if err != nil {
		log.Error().Err(err).Msg("bank stats failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "stats unavailable")
		return
	}
	if st == nil {
		st = []domain.BankStats{}
	}
	writeCached(w, r, statsResponse{Items: st}, "stats")
}
