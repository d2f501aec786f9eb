// Package config holds all contextkit configuration, loaded from YAML
// with CONTEXTKIT_* environment overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	Ranking   RankingConfig   `yaml:"ranking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Budget    BudgetConfig    `yaml:"budget"`
	Policy    PolicyConfig    `yaml:"policy"`
	Pack      PackConfig      `yaml:"pack"`
	Decision  DecisionConfig  `yaml:"decision"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RankingConfig configures the H4R ranker.
type RankingConfig struct {
	Weights WeightsConfig `yaml:"weights"`

	// MinScore is the kept/dropped threshold.
	MinScore float64 `yaml:"min_score"`

	// RecencyLambda is the exponential decay rate per hour of age.
	RecencyLambda float64 `yaml:"recency_lambda"`

	// MaxExpectedAccess normalizes the frequency signal.
	MaxExpectedAccess int `yaml:"max_expected_access"`
}

// WeightsConfig holds the seven ranking signal weights.
// The weights must sum to 1.0 within ±0.01; the ranker rejects
// anything else at construction time.
type WeightsConfig struct {
	Recency            float64 `yaml:"recency"`
	Frequency          float64 `yaml:"frequency"`
	Importance         float64 `yaml:"importance"`
	Causality          float64 `yaml:"causality"`
	NoveltyInverse     float64 `yaml:"novelty_inverse"`
	Trust              float64 `yaml:"trust"`
	SensitivityInverse float64 `yaml:"sensitivity_inverse"`
}

// RetrievalConfig configures the fan-out retriever.
type RetrievalConfig struct {
	// CandidateLimit is passed to each generator.
	CandidateLimit int `yaml:"candidate_limit"`

	// ResultLimit truncates the pooled, ranked result list.
	ResultLimit int `yaml:"result_limit"`

	// GeneratorTimeout bounds each generator call.
	GeneratorTimeout time.Duration `yaml:"generator_timeout"`

	// GatherTimeout bounds the whole candidate-gathering phase.
	GatherTimeout time.Duration `yaml:"gather_timeout"`

	// EnableVector and EnableGraph toggle the optional generators.
	// Full-text is always on.
	EnableVector bool `yaml:"enable_vector"`
	EnableGraph  bool `yaml:"enable_graph"`
}

// BudgetConfig sets the per-slice ceilings.
type BudgetConfig struct {
	MaxBytes  int `yaml:"max_bytes"`
	MaxTokens int `yaml:"max_tokens"`
	MaxItems  int `yaml:"max_items"`
}

// PolicyConfig configures the policy evaluator strategy.
type PolicyConfig struct {
	// ServiceURL is the remote policy-decision endpoint. Empty means
	// local rules only.
	ServiceURL string `yaml:"service_url"`

	// RequestTimeout bounds each remote evaluation call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CacheTTL and CacheSize bound the decision cache.
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`

	// FallbackEnabled applies the local rule table when the remote
	// evaluator is unreachable. When false, unreachable means deny.
	FallbackEnabled bool `yaml:"fallback_enabled"`
}

// PackConfig configures pack assembly.
type PackConfig struct {
	SummarySentences  int  `yaml:"summary_sentences"`
	EnableCausalGraph bool `yaml:"enable_causal_graph"`
}

// DecisionConfig configures the decision loop.
type DecisionConfig struct {
	// AcceptThreshold is the minimum calibrated QScore for ACCEPT.
	AcceptThreshold float64 `yaml:"accept_threshold"`

	// MaxRetries is the global retry ceiling; CategoryMaxRetries
	// overrides it per taxonomy category name.
	MaxRetries         int            `yaml:"max_retries"`
	CategoryMaxRetries map[string]int `yaml:"category_max_retries"`

	// RetryDeadline is the wall-clock window attached to each retry
	// directive.
	RetryDeadline time.Duration `yaml:"retry_deadline"`
}

// StoreConfig configures the SQLite evidence store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Ranking: RankingConfig{
			Weights: WeightsConfig{
				Recency:            0.20,
				Frequency:          0.15,
				Importance:         0.20,
				Causality:          0.10,
				NoveltyInverse:     0.10,
				Trust:              0.15,
				SensitivityInverse: 0.10,
			},
			MinScore:          0.30,
			RecencyLambda:     0.05,
			MaxExpectedAccess: 50,
		},
		Retrieval: RetrievalConfig{
			CandidateLimit:   200,
			ResultLimit:      50,
			GeneratorTimeout: 5 * time.Second,
			GatherTimeout:    15 * time.Second,
			EnableVector:     true,
			EnableGraph:      false,
		},
		Budget: BudgetConfig{
			MaxBytes:  120 * 1024,
			MaxTokens: 30000,
			MaxItems:  100,
		},
		Policy: PolicyConfig{
			RequestTimeout:  3 * time.Second,
			CacheTTL:        5 * time.Minute,
			CacheSize:       1000,
			FallbackEnabled: true,
		},
		Pack: PackConfig{
			SummarySentences:  5,
			EnableCausalGraph: false,
		},
		Decision: DecisionConfig{
			AcceptThreshold: 0.70,
			MaxRetries:      3,
			CategoryMaxRetries: map[string]int{
				"POLICY_DEGRADED": 0,
			},
			RetryDeadline: 10 * time.Minute,
		},
		Store: StoreConfig{
			Path: "contextkit.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, layering file values and then
// environment overrides over the defaults. A missing file is not an
// error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers CONTEXTKIT_* environment variables on top
// of the loaded values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONTEXTKIT_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CONTEXTKIT_POLICY_URL"); v != "" {
		c.Policy.ServiceURL = v
	}
	if v := os.Getenv("CONTEXTKIT_POLICY_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Policy.FallbackEnabled = b
		}
	}
	if v := os.Getenv("CONTEXTKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONTEXTKIT_ACCEPT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Decision.AcceptThreshold = f
		}
	}
	if v := os.Getenv("CONTEXTKIT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Decision.MaxRetries = n
		}
	}
	if v := os.Getenv("CONTEXTKIT_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.MaxBytes = n
		}
	}
}

// Validate rejects configurations that can never work. Weight-sum
// validation is owned by the ranker, which fails construction; this
// catches the rest.
func (c *Config) Validate() error {
	if c.Budget.MaxBytes < 0 || c.Budget.MaxTokens < 0 || c.Budget.MaxItems < 0 {
		return fmt.Errorf("budget ceilings must be non-negative")
	}
	if c.Decision.AcceptThreshold < 0 || c.Decision.AcceptThreshold > 1 {
		return fmt.Errorf("accept_threshold must be in [0,1], got %v", c.Decision.AcceptThreshold)
	}
	if c.Decision.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.Retrieval.GeneratorTimeout <= 0 {
		return fmt.Errorf("generator_timeout must be positive")
	}
	if c.Ranking.MinScore < 0 || c.Ranking.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1], got %v", c.Ranking.MinScore)
	}
	if c.Ranking.MaxExpectedAccess <= 0 {
		return fmt.Errorf("max_expected_access must be positive")
	}
	return nil
}
