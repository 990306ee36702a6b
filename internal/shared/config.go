package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	Workers        int
	MaxReviews     int
	MaxBranches    int
	DelayMin       time.Duration
	DelayMax       time.Duration
	MaxPerSecond   float64 // hard cap on interactions per second; 0 = none
	Region         string
	Language       string
	Headless       bool
	BrowserTimeout time.Duration
}

// Load reads the environment, after applying .env when one exists in the
// working directory. Variables already set win over .env.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("ignoring unreadable .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	atob := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a boolean, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/bank_reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		Workers:        atoi("CRAWL_WORKERS", 1),
		MaxReviews:     atoi("CRAWL_MAX_REVIEWS", 20),
		MaxBranches:    atoi("CRAWL_MAX_BRANCHES", 10),
		DelayMin:       time.Duration(atoi("CRAWL_DELAY_MIN_MS", 2000)) * time.Millisecond,
		DelayMax:       time.Duration(atoi("CRAWL_DELAY_MAX_MS", 5000)) * time.Millisecond,
		MaxPerSecond:   atof("CRAWL_MAX_PER_SECOND", 0),
		Region:         env("CRAWL_REGION", ""),
		Language:       env("CRAWL_LANGUAGE", ""),
		Headless:       atob("CRAWL_HEADLESS", false),
		BrowserTimeout: time.Duration(atoi("BROWSER_TIMEOUT_SECONDS", 20)) * time.Second,
	}
	if c.DelayMax < c.DelayMin {
		log.Warn().Dur("min", c.DelayMin).Dur("max", c.DelayMax).Msg("CRAWL_DELAY_MAX_MS below min, using min")
		c.DelayMax = c.DelayMin
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
