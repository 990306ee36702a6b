package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job validation errors.
var (
	ErrNoBanks              = errors.New("at least one bank is required")
	ErrNoCities             = errors.New("at least one city is required")
	ErrInvalidCap           = errors.New("max_branches, max_reviews and workers must be non-negative")
	ErrInvalidDelay         = errors.New("delay.min_ms must be non-negative and not exceed delay.max_ms")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidBackoffFactor = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidRetryDelay    = errors.New("retry.initial_delay_ms must be non-negative and not exceed retry.max_delay_ms")
)

// Job describes one crawl. Zero values mean "use the environment default".
type Job struct {
	Banks             []string    `yaml:"banks"`
	Cities            []string    `yaml:"cities"`
	Region            string      `yaml:"region"`
	Language          string      `yaml:"language"`
	Output            string      `yaml:"output"`
	Headless          *bool       `yaml:"headless"`
	MaxBranches       int         `yaml:"max_branches"`
	MaxReviews        int         `yaml:"max_reviews"`
	Workers           int         `yaml:"workers"`
	RelevanceKeywords []string    `yaml:"relevance_keywords"`
	Delay             DelayConfig `yaml:"delay"`
	Retry             RetryConfig `yaml:"retry"`
}

type DelayConfig struct {
	MinMs int `yaml:"min_ms"`
	MaxMs int `yaml:"max_ms"`
}

type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// LoadJob reads a YAML crawl job. It is not validated here: flags may still
// fill banks and cities in.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &j, nil
}

// SplitList parses a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (j *Job) Validate() error {
	if len(nonBlank(j.Banks)) == 0 {
		return ErrNoBanks
	}
	if len(nonBlank(j.Cities)) == 0 {
		return ErrNoCities
	}
	if j.MaxBranches < 0 || j.MaxReviews < 0 || j.Workers < 0 {
		return ErrInvalidCap
	}
	if j.Delay.MinMs < 0 || (j.Delay.MaxMs > 0 && j.Delay.MinMs > j.Delay.MaxMs) {
		return ErrInvalidDelay
	}

	r := j.Retry
	if r == (RetryConfig{}) {
		return nil
	}
	if r.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if r.BackoffMultiplier != 0 && r.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffFactor
	}
	if r.InitialDelayMs < 0 || (r.MaxDelayMs > 0 && r.InitialDelayMs > r.MaxDelayMs) {
		return ErrInvalidRetryDelay
	}
	return nil
}

func nonBlank(xs []string) []string {
	var out []string
	for _, x := range xs {
		if strings.TrimSpace(x) != "" {
			out = append(out, x)
		}
	}
	return out
}

// WithDefaults fills every unset field from the environment config.
func (j Job) WithDefaults(c Config) Job {
	if j.Region == "" {
		j.Region = c.Region
	}
	if j.Language == "" {
		j.Language = c.Language
	}
	if j.MaxBranches == 0 {
		j.MaxBranches = c.MaxBranches
	}
	if j.MaxReviews == 0 {
		j.MaxReviews = c.MaxReviews
	}
	if j.Workers == 0 {
		j.Workers = c.Workers
	}
	if j.Delay == (DelayConfig{}) {
		j.Delay = DelayConfig{MinMs: int(c.DelayMin.Milliseconds()), MaxMs: int(c.DelayMax.Milliseconds())}
	}
	if j.Headless == nil {
		h := c.Headless
		j.Headless = &h
	}
	return j
}
