package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bank_reviews/internal/domain"
)

// fakeWeb is the scripted content every fakeSession reads from.
type fakeWeb struct {
	mu       sync.Mutex
	listings map[string][]domain.Entry // by search query
	reviews  map[string][]domain.Entry // by place url
	notReady map[string]bool           // WaitReady always fails for these targets
	slow     map[string]time.Duration  // Navigate sleeps for these targets
	pageSize int                       // entries revealed per load; 0 reveals all
	endless  bool                      // LoadMore never reports the end
	navs     []string
}

func newWeb() *fakeWeb {
	return &fakeWeb{
		listings: map[string][]domain.Entry{},
		reviews:  map[string][]domain.Entry{},
		notReady: map[string]bool{},
		slow:     map[string]time.Duration{},
	}
}

func (w *fakeWeb) navigated() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.navs...)
}

type fakeSession struct {
	web     *fakeWeb
	cur     string
	visible int
	loads   int
	closed  bool
}

func (s *fakeSession) feed(role domain.Role) []domain.Entry {
	s.web.mu.Lock()
	defer s.web.mu.Unlock()
	if role == domain.RoleReview {
		return s.web.reviews[s.cur]
	}
	return s.web.listings[s.cur]
}

func (s *fakeSession) Navigate(_ context.Context, target string) error {
	s.web.mu.Lock()
	s.web.navs = append(s.web.navs, target)
	d := s.web.slow[target]
	s.web.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	s.cur = target
	s.visible = s.web.pageSize
	return nil
}

func (s *fakeSession) WaitReady(_ context.Context, _ domain.Role) error {
	s.web.mu.Lock()
	defer s.web.mu.Unlock()
	if s.web.notReady[s.cur] {
		return fmt.Errorf("wait %s: %w", s.cur, domain.ErrTransientRender)
	}
	return nil
}

func (s *fakeSession) ReadEntries(_ context.Context, role domain.Role) ([]domain.Entry, error) {
	f := s.feed(role)
	if s.visible <= 0 || s.visible > len(f) {
		return append([]domain.Entry(nil), f...), nil
	}
	return append([]domain.Entry(nil), f[:s.visible]...), nil
}

func (s *fakeSession) LoadMore(_ context.Context, role domain.Role) error {
	s.loads++
	f := s.feed(role)
	if s.web.endless {
		return nil
	}
	if s.visible <= 0 || s.visible >= len(f) {
		return domain.ErrEndOfFeed
	}
	s.visible += s.web.pageSize
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	web    *fakeWeb
	err    error
	mu     sync.Mutex
	opened []*fakeSession
}

func (p *fakeProvider) Open(_ context.Context) (domain.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSession{web: p.web}
	p.opened = append(p.opened, s)
	return s, nil
}

type memSink struct {
	mu      sync.Mutex
	batches [][]domain.ReviewRecord
	onBatch func()
	err     error
}

func (m *memSink) Append(_ context.Context, recs []domain.ReviewRecord) error {
	m.mu.Lock()
	m.batches = append(m.batches, recs)
	m.mu.Unlock()
	if m.onBatch != nil {
		m.onBatch()
	}
	return m.err
}

func (m *memSink) all() []domain.ReviewRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReviewRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type memFailures struct {
	mu   sync.Mutex
	got  []domain.WorkUnitFailure
	fail bool
}

func (m *memFailures) LogFailure(_ context.Context, f domain.WorkUnitFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, f)
	if m.fail {
		return errors.New("failure log down")
	}
	return nil
}

// ---- entry builders ----

func listing(name, url string) domain.Entry {
	return domain.Entry{Name: name, Address: name + " street", URL: url}
}

func review(text, rating, phrase string) domain.Entry {
	return domain.Entry{Text: text, Rating: rating, TimePhrase: phrase, Author: "someone"}
}

func reviewsN(n int) []domain.Entry {
	out := make([]domain.Entry, n)
	for i := range out {
		out[i] = domain.Entry{Text: fmt.Sprintf("review number %d", i), Rating: fmt.Sprint(i%5 + 1), TimePhrase: "a week ago", Author: fmt.Sprint("author ", i)}
	}
	return out
}

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
