package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bank_reviews/internal/domain"
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func keyPart(p *string) string {
	if p == nil {
		return "*"
	}
	return strings.ToLower(strings.TrimSpace(*p))
}

func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	key := fmt.Sprintf("reviews:%s:%s:%d", keyPart(q.Bank), keyPart(q.City), q.Limit)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.repo.ListReviews(ctx, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func (s *QueryService) Stats(ctx context.Context, bank *string) ([]domain.BankStats, error) {
	key := "stats:" + keyPart(bank)
	var out []domain.BankStats
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	st, err := s.repo.BankStats(ctx, bank)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, st, int(s.cacheTTL.Seconds()))
	return st, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.ReviewRecord, n)
		copy(out.Items, in.Items)
	}
	return out
}
