package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	mapsSearchURL    = "https://www.google.com/maps/search/"
)

type Options struct {
	Headless     bool
	UserAgent    string
	Language     string        // Accept-Language and hl=, e.g. "fr"
	OpTimeout    time.Duration // per Navigate/ReadEntries/LoadMore
	ReadyTimeout time.Duration // WaitReady budget before ErrTransientRender
	PollEvery    time.Duration
	Settle       time.Duration // pause after a scroll so lazy content can render
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 60 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 20 * time.Second
	}
	if o.PollEvery <= 0 {
		o.PollEvery = 500 * time.Millisecond
	}
	if o.Settle <= 0 {
		o.Settle = 1500 * time.Millisecond
	}
	return o
}

// Provider starts one headless Chrome per session.
type Provider struct {
	opts Options
}

func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts.withDefaults()}
}

func (p *Provider) Open(ctx context.Context) (domain.Session, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.opts.UserAgent),
	)
	// the browser outlives ctx; sessions are closed explicitly
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), flags...)
	bctx, cancelCtx := chromedp.NewContext(allocCtx)

	start := time.Now()
	actions := []chromedp.Action{network.Enable()}
	if p.opts.Language != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": p.opts.Language}))
	}
	err := chromedp.Run(bctx, actions...)
	observability.ObserveSession("open", err, time.Since(start))
	if err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("%w: start browser: %w", domain.ErrSessionUnavailable, err)
	}
	log.Debug().Bool("headless", p.opts.Headless).Msg("browser session opened")
	return &Session{ctx: bctx, cancel: func() { cancelCtx(); cancelAlloc() }, opts: p.opts}, nil
}

// Session drives one browser tab. It is not safe for concurrent use.
type Session struct {
	ctx    context.Context
	cancel func()
	opts   Options
}

// op derives a context bounded by the session, d and the caller's ctx.
func (s *Session) op(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(s.ctx, d)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() { stop(); cancel() }
}

func (s *Session) observe(op string, start time.Time, err error) error {
	observability.ObserveSession(op, err, time.Since(start))
	return err
}

// SearchURL builds the Maps search address for a free-text query.
func SearchURL(query, lang string) string {
	u := mapsSearchURL + url.PathEscape(strings.TrimSpace(query))
	if lang != "" {
		u += "?hl=" + url.QueryEscape(lang)
	}
	return u
}

// Navigate opens target, a place URL or a free-text search query, and
// dismisses the consent dialog if one is shown.
func (s *Session) Navigate(ctx context.Context, target string) (err error) {
	defer func(start time.Time) { err = s.observe("navigate", start, err) }(time.Now())

	u := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		u = SearchURL(target, s.opts.Language)
	}
	tctx, cancel := s.op(ctx, s.opts.OpTimeout)
	defer cancel()

	var clicked bool
	err = chromedp.Run(tctx,
		chromedp.Navigate(u),
		chromedp.Evaluate(consentScript, &clicked),
	)
	if err != nil {
		return notReady(fmt.Errorf("navigate %s: %w", u, err))
	}
	if clicked {
		log.Debug().Str("url", u).Msg("consent dialog dismissed")
	}
	return nil
}

// WaitReady polls until entries of role can be read. For reviews it opens
// the reviews tab of the current place first.
func (s *Session) WaitReady(ctx context.Context, role domain.Role) (err error) {
	defer func(start time.Time) { err = s.observe("wait_"+string(role), start, err) }(time.Now())

	tctx, cancel := s.op(ctx, s.opts.ReadyTimeout)
	defer cancel()

	script := listingStateScript
	if role == domain.RoleReview {
		script = reviewStateScript
	}
	tick := time.NewTicker(s.opts.PollEvery)
	defer tick.Stop()
	for {
		var state string
		if err := chromedp.Run(tctx, chromedp.Evaluate(script, &state)); err != nil {
			return notReady(fmt.Errorf("wait %s: %w", role, err))
		}
		switch state {
		case "feed", "empty", "place", "reviews", "none":
			return nil
		}
		select {
		case <-tctx.Done():
			return fmt.Errorf("wait %s: %w", role, domain.ErrTransientRender)
		case <-tick.C:
		}
	}
}

// ReadEntries returns every entry of role currently rendered.
func (s *Session) ReadEntries(ctx context.Context, role domain.Role) (entries []domain.Entry, err error) {
	defer func(start time.Time) { err = s.observe("read_"+string(role), start, err) }(time.Now())

	tctx, cancel := s.op(ctx, s.opts.OpTimeout)
	defer cancel()

	var html, loc string
	actions := []chromedp.Action{}
	if role == domain.RoleReview {
		var n int
		actions = append(actions, chromedp.Evaluate(expandScript, &n))
	}
	actions = append(actions,
		chromedp.Evaluate(snapshotScript, &html),
		chromedp.Location(&loc),
	)
	if err := chromedp.Run(tctx, actions...); err != nil {
		return nil, notReady(fmt.Errorf("read %s: %w", role, err))
	}
	if role == domain.RoleReview {
		return ParseReviews(html)
	}
	return ParseListings(html, loc)
}

// LoadMore scrolls the role's container to the bottom and waits for lazy
// content to settle. domain.ErrEndOfFeed is returned once the feed shows
// its end marker.
func (s *Session) LoadMore(ctx context.Context, role domain.Role) (err error) {
	defer func(start time.Time) { err = s.observe("load_"+string(role), start, err) }(time.Now())

	tctx, cancel := s.op(ctx, s.opts.OpTimeout)
	defer cancel()

	var res struct {
		Found bool `json:"found"`
		End   bool `json:"end"`
	}
	if err := chromedp.Run(tctx,
		chromedp.Evaluate(scrollScript(string(role)), &res),
		chromedp.Sleep(s.opts.Settle),
	); err != nil {
		return notReady(fmt.Errorf("scroll %s: %w", role, err))
	}
	if res.End {
		return domain.ErrEndOfFeed
	}
	if !res.Found {
		return fmt.Errorf("scroll %s: no container: %w", role, domain.ErrTransientRender)
	}
	return nil
}

func (s *Session) Close() error {
	s.cancel()
	return nil
}

// notReady classifies browser timeouts as transient render failures.
func notReady(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTransientRender, err)
	}
	return err
}
