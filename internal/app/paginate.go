package app

import (
	"context"
	"errors"

	"bank_reviews/internal/domain"
)

// PageLimits bounds incremental loading of a feed.
type PageLimits struct {
	StagnationLimit int // consecutive loads without a new entry before giving up
	MaxInteractions int // hard ceiling on loads, guards malformed pages
}

func DefaultPageLimits() PageLimits { return PageLimits{StagnationLimit: 3, MaxInteractions: 50} }

func (l PageLimits) withDefaults() PageLimits {
	d := DefaultPageLimits()
	if l.StagnationLimit <= 0 {
		l.StagnationLimit = d.StagnationLimit
	}
	if l.MaxInteractions <= 0 {
		l.MaxInteractions = d.MaxInteractions
	}
	return l
}

// acceptFunc consumes the currently visible entries and reports how many new
// items it kept and whether the caller has enough.
type acceptFunc func(entries []domain.Entry) (added int, done bool)

type pager struct {
	pol    *Politeness
	retry  RetryPolicy
	limits PageLimits
}

// run reads the visible entries, then keeps loading more until accept is
// done, growth stalls for StagnationLimit loads, the feed ends or
// MaxInteractions loads were issued. It returns the number of loads.
func (p pager) run(ctx context.Context, s domain.Session, role domain.Role, accept acceptFunc) (int, error) {
	lim := p.limits.withDefaults()
	loads, stagnant := 0, 0
	ended := false
	for {
		var entries []domain.Entry
		err := p.retry.Do(ctx, "read "+string(role), func() error {
			var rerr error
			entries, rerr = s.ReadEntries(ctx, role)
			return rerr
		})
		if err != nil {
			return loads, err
		}

		added, done := accept(entries)
		if done || ended {
			return loads, nil
		}
		if loads > 0 {
			if added == 0 {
				stagnant++
			} else {
				stagnant = 0
			}
			if stagnant >= lim.StagnationLimit {
				return loads, nil
			}
		}
		if loads >= lim.MaxInteractions {
			return loads, nil
		}

		if err := p.pol.Wait(ctx); err != nil {
			return loads, err
		}
		loads++
		if err := s.LoadMore(ctx, role); err != nil {
			switch {
			case errors.Is(err, domain.ErrEndOfFeed):
				// one last read picks up whatever the final load rendered
				ended = true
			case errors.Is(err, domain.ErrTransientRender):
				// counts as a load that brought nothing
			default:
				return loads, err
			}
		}
	}
}
