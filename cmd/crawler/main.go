package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bank_reviews/internal/adapters/browser"
	"bank_reviews/internal/adapters/export"
	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
	"bank_reviews/internal/shared"
	mysqlrepo "bank_reviews/internal/storage/mysql"
)

type flags struct {
	output      string
	banks       string
	cities      string
	config      string
	region      string
	language    string
	headless    bool
	store       bool
	maxReviews  int
	maxBranches int
	workers     int
	delayMin    float64
	delayMax    float64
}

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	root := newRootCmd(cfg, func(ctx context.Context, job shared.Job, store bool) error {
		return run(ctx, cfg, job, store)
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, job shared.Job, store bool) error

func newRootCmd(cfg shared.Config, runJob runFunc) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "crawler --banks <list> --cities <list> --output <file.json|file.csv>",
		Short: "Collect public reviews of bank branches from the maps listings service.",
		Long: "For every (bank, city) pair the crawler searches the listings, visits up to --max_branches\n" +
			"branches and extracts up to --max_reviews reviews each. A failed query or branch is logged\n" +
			"and skipped; the run only fails when no browser session can be started.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := buildJob(cmd, f, cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJob(ctx, job, f.store)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.output, "output", "", "output file, .json or .csv")
	fl.StringVar(&f.banks, "banks", "", "comma-separated bank names")
	fl.StringVar(&f.cities, "cities", "", "comma-separated city names")
	fl.StringVar(&f.config, "config", "", "YAML crawl job; flags override its values")
	fl.StringVar(&f.region, "region", "", "appended to every search, e.g. Morocco")
	fl.StringVar(&f.language, "language", "", "interface language of the listings, e.g. fr")
	fl.BoolVar(&f.headless, "headless", false, "run the browser without a window (default from CRAWL_HEADLESS)")
	fl.BoolVar(&f.store, "store", false, "also upsert records into MySQL (MYSQL_DSN)")
	fl.IntVar(&f.maxReviews, "max_reviews", app.DefaultMaxReviews, "reviews per branch")
	fl.IntVar(&f.maxBranches, "max_branches", app.DefaultMaxBranches, "branches per (bank, city)")
	fl.IntVar(&f.workers, "workers", 1, "parallel browser sessions")
	fl.Float64Var(&f.delayMin, "delay_min", 2, "minimum pause between interactions, seconds")
	fl.Float64Var(&f.delayMax, "delay_max", 5, "maximum pause between interactions, seconds")
	return cmd
}

// buildJob layers environment defaults, the job file and explicit flags,
// in that order.
func buildJob(cmd *cobra.Command, f flags, cfg shared.Config) (shared.Job, error) {
	job := shared.Job{}
	if f.config != "" {
		j, err := shared.LoadJob(f.config)
		if err != nil {
			return shared.Job{}, err
		}
		job = *j
	}

	changed := cmd.Flags().Changed
	if changed("banks") {
		job.Banks = shared.SplitList(f.banks)
	}
	if changed("cities") {
		job.Cities = shared.SplitList(f.cities)
	}
	if changed("output") {
		job.Output = f.output
	}
	if changed("region") {
		job.Region = f.region
	}
	if changed("language") {
		job.Language = f.language
	}
	if changed("headless") {
		job.Headless = &f.headless
	}
	if changed("max_reviews") {
		job.MaxReviews = f.maxReviews
	}
	if changed("max_branches") {
		job.MaxBranches = f.maxBranches
	}
	if changed("workers") {
		job.Workers = f.workers
	}
	if changed("delay_min") || changed("delay_max") {
		d := job.WithDefaults(cfg).Delay
		if changed("delay_min") {
			d.MinMs = int(f.delayMin * 1000)
		}
		if changed("delay_max") {
			d.MaxMs = int(f.delayMax * 1000)
		}
		job.Delay = d
	}

	job = job.WithDefaults(cfg)
	if err := job.Validate(); err != nil {
		return shared.Job{}, err
	}
	if job.Output == "" {
		return shared.Job{}, errors.New("--output is required")
	}
	return job, nil
}

func retryPolicy(r shared.RetryConfig) app.RetryPolicy {
	if r == (shared.RetryConfig{}) {
		return app.DefaultRetryPolicy()
	}
	p := app.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: time.Duration(r.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(r.MaxDelayMs) * time.Millisecond,
		Multiplier:   r.BackoffMultiplier,
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2
	}
	return p
}

func run(ctx context.Context, cfg shared.Config, job shared.Job, store bool) error {
	if ms := observability.Serve(cfg.MetricsAddr); ms != nil {
		defer ms.Close()
	}

	out, err := export.New(job.Output)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Error().Err(err).Str("path", job.Output).Msg("finalize output failed")
		}
	}()

	var sink domain.RecordSink = out
	var failures domain.FailureLog
	if store {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("sql.Open: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		repo := mysqlrepo.New(db)
		sink = export.Tee{out, repo}
		failures = repo
	}

	provider := browser.NewProvider(browser.Options{
		Headless:     *job.Headless,
		Language:     job.Language,
		ReadyTimeout: cfg.BrowserTimeout,
	})
	pol := app.NewPoliteness(
		time.Duration(job.Delay.MinMs)*time.Millisecond,
		time.Duration(job.Delay.MaxMs)*time.Millisecond,
		cfg.MaxPerSecond,
	)
	retry := retryPolicy(job.Retry)

	keywords := job.RelevanceKeywords
	if keywords == nil {
		keywords = app.DefaultRelevanceKeywords
	}
	search := app.NewListingSearch(pol, app.SearchOptions{Region: job.Region, RelevanceKeywords: keywords, Retry: retry})
	collect := app.NewReviewCollector(pol, app.CollectorOptions{Retry: retry, Language: app.NewLanguageDetector()})
	svc := app.NewCrawlService(provider, search, collect, sink, failures, app.CrawlConfig{
		MaxBranches: job.MaxBranches,
		MaxReviews:  job.MaxReviews,
		Workers:     job.Workers,
	})

	rep, err := svc.Run(ctx, job.Banks, job.Cities)
	if err != nil {
		log.Error().Err(err).Msg("crawl could not start")
		return err
	}

	fmt.Printf("Collected %d reviews into %s\n", len(rep.Records), job.Output)
	fmt.Printf("Units: %d completed, %d failed, %d skipped\n", rep.Completed, rep.Failed, rep.Skipped)
	for _, f := range rep.Failures {
		fmt.Printf("  failed: %s\n", f.Error())
	}
	if ctx.Err() != nil {
		fmt.Println("Run interrupted; records collected so far were saved.")
	}
	return nil
}
