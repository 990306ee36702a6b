package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

const DefaultMaxReviews = 20

type CollectorOptions struct {
	Limits   PageLimits
	Retry    RetryPolicy
	Language LanguageDetector
}

type CollectStats struct {
	Loads      int
	Malformed  int
	Duplicates int
}

// ReviewCollector extracts the reviews of one branch.
type ReviewCollector struct {
	pager pager
	lang  LanguageDetector
}

func NewReviewCollector(pol *Politeness, opts CollectorOptions) *ReviewCollector {
	if pol == nil {
		pol = NoDelay()
	}
	return &ReviewCollector{
		pager: pager{pol: pol, retry: opts.Retry, limits: opts.Limits},
		lang:  opts.Language,
	}
}

// Collect opens the branch's reviews panel and extracts up to maxReviews
// distinct reviews in the order the panel surfaces them.
//
// If the panel never becomes interactive it returns no records and a
// *domain.WorkUnitFailure. If loading breaks part way, the records read so
// far are returned together with the failure.
func (c *ReviewCollector) Collect(ctx context.Context, sess domain.Session, b domain.BranchCandidate, maxReviews int, now time.Time) ([]domain.ReviewRecord, CollectStats, error) {
	var st CollectStats
	if maxReviews <= 0 {
		maxReviews = DefaultMaxReviews
	}
	fail := func(err error) error {
		return &domain.WorkUnitFailure{Kind: domain.UnitBranch, Bank: b.Bank, City: b.City, Branch: b.Name, URL: b.URL, Err: err}
	}

	err := c.pager.retry.Do(ctx, "open reviews", func() error {
		if err := c.pager.pol.Wait(ctx); err != nil {
			return err
		}
		if err := sess.Navigate(ctx, b.URL); err != nil {
			return err
		}
		return sess.WaitReady(ctx, domain.RoleReview)
	})
	if err != nil {
		return nil, st, fail(err)
	}

	examined := make(map[domain.Entry]struct{})
	seen := make(map[string]struct{})
	raws := make([]domain.RawReview, 0, maxReviews)
	fps := make([]string, 0, maxReviews)

	loads, perr := c.pager.run(ctx, sess, domain.RoleReview, func(entries []domain.Entry) (int, bool) {
		added := 0
		for _, e := range entries {
			if _, ok := examined[e]; ok {
				continue
			}
			examined[e] = struct{}{}

			r, err := mapRawReview(e)
			if err != nil {
				st.Malformed++
				observability.ObserveMalformed(domain.RoleReview)
				log.Debug().Err(err).Str("branch", b.Name).Str("author", e.Author).Msg("review entry skipped")
				continue
			}
			fp := fingerprint(r)
			if _, dup := seen[fp]; dup {
				st.Duplicates++
				continue
			}
			seen[fp] = struct{}{}
			raws = append(raws, r)
			fps = append(fps, fp)
			added++
			if len(raws) >= maxReviews {
				return added, true
			}
		}
		return added, false
	})
	st.Loads = loads

	out := make([]domain.ReviewRecord, 0, len(raws))
	for i, r := range raws {
		out = append(out, mapRecord(b, r, fps[i], now, c.lang))
	}
	if perr != nil {
		return out, st, fail(perr)
	}
	return out, st, nil
}
