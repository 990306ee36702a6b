package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

// CrawlConfig is fixed for the lifetime of a CrawlService.
type CrawlConfig struct {
	MaxBranches int // per (bank, city) query
	MaxReviews  int // per branch
	Workers     int // independent sessions; 1 keeps the run fully sequential
}

// Report is the outcome of one run. Partial success is the normal case.
type Report struct {
	Records []domain.ReviewRecord

	Completed int // work units (queries and branches) finished
	Failed    int
	Skipped   int // units never started because the run was stopped

	Failures          []domain.WorkUnitFailure
	Malformed         int
	Duplicates        int // reviews seen twice within a branch
	DuplicateBranches int // branches already collected by an earlier query
	SinkErrors        int

	StartedAt  time.Time
	FinishedAt time.Time
}

type CrawlService struct {
	sessions domain.SessionProvider
	search   *ListingSearch
	collect  *ReviewCollector
	sink     domain.RecordSink
	failures domain.FailureLog
	cfg      CrawlConfig
	now      func() time.Time
}

// NewCrawlService wires the orchestrator. sink and failures may be nil.
func NewCrawlService(p domain.SessionProvider, s *ListingSearch, c *ReviewCollector, sink domain.RecordSink, failures domain.FailureLog, cfg CrawlConfig) *CrawlService {
	if cfg.MaxBranches <= 0 {
		cfg.MaxBranches = DefaultMaxBranches
	}
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = DefaultMaxReviews
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &CrawlService{sessions: p, search: s, collect: c, sink: sink, failures: failures, cfg: cfg, now: time.Now}
}

// WithClock replaces the crawl timestamp source.
func (s *CrawlService) WithClock(now func() time.Time) *CrawlService {
	s.now = now
	return s
}

// Queries expands banks × cities, banks outer, both in input order.
func Queries(banks, cities []string) []domain.Query {
	var out []domain.Query
	for _, b := range banks {
		if b = strings.TrimSpace(b); b == "" {
			continue
		}
		for _, c := range cities {
			if c = strings.TrimSpace(c); c == "" {
				continue
			}
			out = append(out, domain.Query{Bank: b, City: c})
		}
	}
	return out
}

// Run crawls every (bank, city) pair. Cancelling ctx stops the run at the
// next query or branch boundary; the interaction in flight completes.
// The only error returned is a session that cannot be established, wrapped
// around domain.ErrSessionUnavailable; nothing has been crawled in that case.
func (s *CrawlService) Run(ctx context.Context, banks, cities []string) (Report, error) {
	queries := Queries(banks, cities)
	r := &run{svc: s, stop: ctx, work: context.WithoutCancel(ctx), crawlTime: s.now(), branches: map[string]struct{}{}}
	r.report.StartedAt = r.crawlTime

	workers := s.cfg.Workers
	if workers > len(queries) {
		workers = len(queries)
	}
	if workers < 1 {
		workers = 1
	}

	sessions := make([]domain.Session, 0, workers)
	defer func() {
		for _, sess := range sessions {
			if err := sess.Close(); err != nil {
				log.Warn().Err(err).Msg("session close failed")
			}
		}
	}()
	for i := 0; i < workers; i++ {
		sess, err := s.sessions.Open(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionUnavailable) {
				err = fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
			}
			return Report{}, err
		}
		sessions = append(sessions, sess)
	}

	log.Info().
		Int("queries", len(queries)).
		Int("workers", workers).
		Int("max_branches", s.cfg.MaxBranches).
		Int("max_reviews", s.cfg.MaxReviews).
		Msg("crawl starting")

	r.seq = newSequencer(r.emit)
	idx := make(chan int)
	var g errgroup.Group
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			for i := range idx {
				r.query(sess, i, queries[i])
			}
			return nil
		})
	}
	for i := range queries {
		idx <- i
	}
	close(idx)
	_ = g.Wait()

	r.report.FinishedAt = s.now()
	rep := r.report
	log.Info().
		Int("records", len(rep.Records)).
		Int("completed", rep.Completed).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Int("malformed", rep.Malformed).
		Int("duplicate_branches", rep.DuplicateBranches).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("crawl finished")
	return rep, nil
}

// run holds the mutable state of one Run.
type run struct {
	svc       *CrawlService
	stop      context.Context
	work      context.Context
	crawlTime time.Time
	seq       *sequencer

	mu       sync.Mutex
	report   Report
	branches map[string]struct{}
}

func (r *run) stopped() bool { return r.stop.Err() != nil }

func (r *run) query(sess domain.Session, i int, q domain.Query) {
	defer r.seq.finish(i)
	if r.stopped() {
		r.count(func(rep *Report) { rep.Skipped++ })
		return
	}

	cfg := r.svc.cfg
	log.Info().Str("bank", q.Bank).Str("city", q.City).Msg("query started")
	cands, sst, err := r.svc.search.Search(r.work, sess, q.Bank, q.City, cfg.MaxBranches)
	r.count(func(rep *Report) { rep.Malformed += sst.Malformed })
	if err != nil {
		r.fail(err)
		return
	}
	r.count(func(rep *Report) { rep.Completed++ })
	observability.ObserveUnit(domain.UnitQuery, "ok")
	log.Info().Str("bank", q.Bank).Str("city", q.City).Int("branches", len(cands)).Msg("query done")

	for j, c := range cands {
		if r.stopped() {
			left := len(cands) - j
			r.count(func(rep *Report) { rep.Skipped += left })
			return
		}
		if !r.claim(c.URL) {
			r.count(func(rep *Report) { rep.DuplicateBranches++ })
			log.Debug().Str("branch", c.Name).Str("url", c.URL).Msg("branch already collected in this run")
			continue
		}

		log.Info().Str("bank", c.Bank).Str("city", c.City).Str("branch", c.Name).Msg("branch started")
		recs, cst, err := r.svc.collect.Collect(r.work, sess, c, cfg.MaxReviews, r.crawlTime)
		r.count(func(rep *Report) {
			rep.Malformed += cst.Malformed
			rep.Duplicates += cst.Duplicates
		})
		if len(recs) > 0 {
			r.seq.push(i, recs)
		}
		if err != nil {
			r.fail(err)
			continue
		}
		r.count(func(rep *Report) { rep.Completed++ })
		observability.ObserveUnit(domain.UnitBranch, "ok")
		log.Info().Str("branch", c.Name).Int("reviews", len(recs)).Int("loads", cst.Loads).Msg("branch done")
	}
}

func (r *run) claim(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.branches[url]; ok {
		return false
	}
	r.branches[url] = struct{}{}
	return true
}

func (r *run) count(f func(*Report)) {
	r.mu.Lock()
	f(&r.report)
	r.mu.Unlock()
}

func (r *run) fail(err error) {
	var wf *domain.WorkUnitFailure
	if !errors.As(err, &wf) {
		wf = &domain.WorkUnitFailure{Kind: domain.UnitQuery, Err: err}
	}
	r.count(func(rep *Report) {
		rep.Failed++
		rep.Failures = append(rep.Failures, *wf)
	})
	observability.ObserveUnit(wf.Kind, "failed")
	log.Warn().Err(wf.Err).
		Str("unit", string(wf.Kind)).
		Str("bank", wf.Bank).
		Str("city", wf.City).
		Str("branch", wf.Branch).
		Msg("work unit failed")

	if r.svc.failures != nil {
		if lerr := r.svc.failures.LogFailure(r.work, *wf); lerr != nil {
			log.Error().Err(lerr).Msg("record failure failed")
		}
	}
}

// emit runs under the sequencer lock, in output order.
func (r *run) emit(recs []domain.ReviewRecord) {
	r.mu.Lock()
	r.report.Records = append(r.report.Records, recs...)
	r.mu.Unlock()
	observability.ObserveReviews(len(recs))

	if r.svc.sink == nil {
		return
	}
	if err := r.svc.sink.Append(r.work, recs); err != nil {
		r.count(func(rep *Report) { rep.SinkErrors++ })
		log.Error().Err(err).Int("records", len(recs)).Msg("sink append failed")
	}
}

// sequencer releases record batches strictly in query order, whatever order
// the workers finish in. Batches of the query at the head are written at once.
type sequencer struct {
	mu       sync.Mutex
	next     int
	pending  map[int][][]domain.ReviewRecord
	finished map[int]bool
	emit     func([]domain.ReviewRecord)
}

func newSequencer(emit func([]domain.ReviewRecord)) *sequencer {
	return &sequencer{pending: map[int][][]domain.ReviewRecord{}, finished: map[int]bool{}, emit: emit}
}

func (q *sequencer) push(i int, recs []domain.ReviewRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i == q.next {
		q.emit(recs)
		return
	}
	q.pending[i] = append(q.pending[i], recs)
}

func (q *sequencer) finish(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished[i] = true
	for q.finished[q.next] {
		delete(q.finished, q.next)
		q.next++
		for _, recs := range q.pending[q.next] {
			q.emit(recs)
		}
		delete(q.pending, q.next)
	}
}
