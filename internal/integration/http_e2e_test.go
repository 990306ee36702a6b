//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	server "bank_reviews/internal/adapters/http_server"
	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
	mysqlrepo "bank_reviews/internal/storage/mysql"
)

// ---------- helpers ----------
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- scripted session (one branch, three reviews) ----------
type scriptedSession struct {
	cur string
}

var (
	scriptListings = map[string][]domain.Entry{
		"Test Bank Testville": {{Name: "Test Bank Centre", Address: "1 Main St", URL: "https://maps.example/place/centre"}},
	}
	scriptReviews = map[string][]domain.Entry{
		"https://maps.example/place/centre": {
			{Text: "Great service, the staff were quick and friendly.", Rating: "5 stars", TimePhrase: "a day ago"},
			{Text: "Average experience, the queue was long.", Rating: "3 stars", TimePhrase: "2 months ago"},
			{Text: "", Rating: "1 star", TimePhrase: "unknown phrase"},
		},
	}
)

func (s *scriptedSession) Navigate(_ context.Context, target string) error {
	s.cur = target
	return nil
}
func (s *scriptedSession) WaitReady(context.Context, domain.Role) error { return nil }
func (s *scriptedSession) ReadEntries(_ context.Context, role domain.Role) ([]domain.Entry, error) {
	if role == domain.RoleReview {
		return scriptReviews[s.cur], nil
	}
	return scriptListings[s.cur], nil
}
func (s *scriptedSession) LoadMore(context.Context, domain.Role) error { return domain.ErrEndOfFeed }
func (s *scriptedSession) Close() error                                { return nil }

type scriptedProvider struct{}

func (scriptedProvider) Open(context.Context) (domain.Session, error) { return &scriptedSession{}, nil }

// ---------- the test ----------
func TestCrawlThenServe_EndToEnd(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=bank_reviews",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/bank_reviews?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// crawl into MySQL
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	search := app.NewListingSearch(app.NoDelay(), app.SearchOptions{Retry: app.NoRetry()})
	collect := app.NewReviewCollector(app.NoDelay(), app.CollectorOptions{Retry: app.NoRetry(), Language: app.NewLanguageDetector()})
	svc := app.NewCrawlService(scriptedProvider{}, search, collect, repo, repo, app.CrawlConfig{}).
		WithClock(func() time.Time { return now })
	rep, err := svc.Run(ctx, []string{"Test Bank"}, []string{"Testville"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Records) != 3 || rep.SinkErrors != 0 {
		t.Fatalf("report: records=%d sink errors=%d", len(rep.Records), rep.SinkErrors)
	}

	// serve from MySQL through the redis cache
	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "e2e:")
	q := app.NewQueryService(repo, cache, time.Minute)
	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{Q: q})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/reviews?bank=Test%20Bank&city=Testville")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Items []domain.ReviewRecord `json:"items"`
		Count int                   `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 3 {
		t.Fatalf("count: %d", body.Count)
	}
	dates := map[int]*string{}
	for _, it := range body.Items {
		dates[it.Rating] = it.Date
	}
	if d := dates[5]; d == nil || *d != "2024-06-14" {
		t.Fatalf("5-star date: %v", d)
	}
	if d := dates[3]; d == nil || *d != "2024-04-15" {
		t.Fatalf("3-star date: %v", d)
	}
	if dates[1] != nil {
		t.Fatalf("1-star date should be null")
	}
	if keys := mr.Keys(); len(keys) != 1 {
		t.Fatalf("expected one cached page, got %v", keys)
	}

	stats, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer stats.Body.Close()
	var sb struct {
		Items []domain.BankStats `json:"items"`
	}
	if err := json.NewDecoder(stats.Body).Decode(&sb); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(sb.Items) != 1 || sb.Items[0].Reviews != 3 || sb.Items[0].Branches != 1 {
		t.Fatalf("stats: %+v", sb.Items)
	}
}
