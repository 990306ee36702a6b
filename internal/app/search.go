package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

const DefaultMaxBranches = 10

// DefaultRelevanceKeywords are the generic words a branch listing may carry
// instead of the bank's own name.
var DefaultRelevanceKeywords = []string{"bank", "banque", "atm", "agence", "guichet"}

type SearchOptions struct {
	Region            string   // appended to every query, e.g. "Morocco"
	RelevanceKeywords []string // empty keeps every listing
	Limits            PageLimits
	Retry             RetryPolicy
}

type SearchStats struct {
	Loads      int
	Malformed  int
	Duplicates int
	Filtered   int
}

type ListingSearch struct {
	pager    pager
	region   string
	keywords []string
}

func NewListingSearch(pol *Politeness, opts SearchOptions) *ListingSearch {
	if pol == nil {
		pol = NoDelay()
	}
	return &ListingSearch{
		pager:    pager{pol: pol, retry: opts.Retry, limits: opts.Limits},
		region:   strings.TrimSpace(opts.Region),
		keywords: opts.RelevanceKeywords,
	}
}

func searchQuery(bank, city, region string) string {
	return strings.TrimSpace(strings.Join([]string{bank, city, region}, " "))
}

// Search returns up to maxCandidates distinct branches for (bank, city), in
// feed order. No results is not an error. A page that never renders after
// the retry policy is exhausted yields a *domain.WorkUnitFailure.
func (s *ListingSearch) Search(ctx context.Context, sess domain.Session, bank, city string, maxCandidates int) ([]domain.BranchCandidate, SearchStats, error) {
	var st SearchStats
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxBranches
	}
	fail := func(err error) error {
		return &domain.WorkUnitFailure{Kind: domain.UnitQuery, Bank: bank, City: city, Err: err}
	}

	q := searchQuery(bank, city, s.region)
	err := s.pager.retry.Do(ctx, "search", func() error {
		if err := s.pager.pol.Wait(ctx); err != nil {
			return err
		}
		if err := sess.Navigate(ctx, q); err != nil {
			return err
		}
		return sess.WaitReady(ctx, domain.RoleListing)
	})
	if err != nil {
		return nil, st, fail(err)
	}

	examined := make(map[domain.Entry]struct{})
	seen := make(map[string]struct{})
	out := make([]domain.BranchCandidate, 0, maxCandidates)

	loads, err := s.pager.run(ctx, sess, domain.RoleListing, func(entries []domain.Entry) (int, bool) {
		added := 0
		for _, e := range entries {
			if _, ok := examined[e]; ok {
				continue
			}
			examined[e] = struct{}{}

			c, err := mapCandidate(e, bank, city)
			if err != nil {
				st.Malformed++
				observability.ObserveMalformed(domain.RoleListing)
				log.Debug().Err(err).Str("bank", bank).Str("city", city).Msg("listing entry skipped")
				continue
			}
			if !relevant(c.Name, bank, s.keywords) {
				st.Filtered++
				log.Debug().Str("name", c.Name).Str("bank", bank).Msg("listing not relevant to bank")
				continue
			}
			if _, dup := seen[c.URL]; dup {
				st.Duplicates++
				continue
			}
			seen[c.URL] = struct{}{}
			out = append(out, c)
			added++
			if len(out) >= maxCandidates {
				return added, true
			}
		}
		return added, false
	})
	st.Loads = loads
	if err != nil && len(out) == 0 {
		return nil, st, fail(err)
	}
	if err != nil {
		log.Warn().Err(err).Str("bank", bank).Str("city", city).Int("candidates", len(out)).
			Msg("listing feed interrupted, keeping candidates read so far")
	}

	if len(out) == 0 {
		log.Debug().Str("bank", bank).Str("city", city).Msg("no listings found")
	}
	return out, st, nil
}
