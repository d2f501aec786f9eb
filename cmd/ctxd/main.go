package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contextkit/internal/config"
	"contextkit/internal/decision"
	"contextkit/internal/evidence"
	"contextkit/internal/logging"
	"contextkit/internal/pack"
	"contextkit/internal/policy"
	"contextkit/internal/ranking"
	"contextkit/internal/retrieval"
	"contextkit/internal/slicing"
	"contextkit/internal/store"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ctxd",
	Short: "ctxd - context retrieval and decision engine",
	Long: `ctxd assembles policy- and budget-constrained context packs for
specialist workers and judges their results through the quality loop
(score, verify, classify, retry or escalate).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Initialize(level, cfg.Logging.Format)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ctxd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ctxd %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(ingestCmd)
}

// buildPipeline wires the full retrieval and slicing pipeline from
// configuration. The caller owns the returned store handle.
func buildPipeline() (*pack.Builder, *store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening evidence store: %w", err)
	}

	gens := []evidence.Generator{evidence.NewFullTextGenerator(st)}
	if cfg.Retrieval.EnableVector {
		gens = append(gens, evidence.NewVectorGenerator(st, evidence.NewHashingEmbedder(0)))
	}
	if cfg.Retrieval.EnableGraph {
		gens = append(gens, evidence.NewGraphGenerator(st))
	}
	registry, err := evidence.NewRegistry(gens...)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	ranker, err := ranking.NewRanker(cfg.Ranking, evidence.SystemClock, nil)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	retriever := retrieval.New(registry, ranker, retrieval.Config{
		CandidateLimit:   cfg.Retrieval.CandidateLimit,
		ResultLimit:      cfg.Retrieval.ResultLimit,
		GeneratorTimeout: cfg.Retrieval.GeneratorTimeout,
		GatherTimeout:    cfg.Retrieval.GatherTimeout,
	})

	slicer := slicing.New(buildEvaluator(), slicing.Limits{
		MaxBytes:  cfg.Budget.MaxBytes,
		MaxTokens: cfg.Budget.MaxTokens,
		MaxItems:  cfg.Budget.MaxItems,
	})

	builder := pack.NewBuilder(retriever, slicer, cfg.Pack.SummarySentences, cfg.Pack.EnableCausalGraph)
	return builder, st, nil
}

// buildEvaluator selects the policy strategy from configuration: the
// remote service behind a TTL cache when a URL is set, the local rule
// table otherwise.
func buildEvaluator() policy.Evaluator {
	local := policy.NewLocalRuleEvaluator()
	if cfg.Policy.ServiceURL == "" {
		return local
	}
	remote := policy.NewRemoteEvaluator(cfg.Policy.ServiceURL, cfg.Policy.RequestTimeout)
	var fallback policy.Evaluator
	if cfg.Policy.FallbackEnabled {
		fallback = local
	}
	wrapped := policy.NewFallbackEvaluator(remote, fallback, cfg.Policy.FallbackEnabled)
	return policy.NewCachingEvaluator(wrapped, cfg.Policy.CacheTTL, cfg.Policy.CacheSize, nil)
}

// buildLoop wires the decision loop from configuration. A result
// schema is only enforced when one is supplied.
func buildLoop(schemaJSON []byte) (*decision.Loop, error) {
	calc, err := decision.NewQScoreCalculator(decision.DefaultQWeights())
	if err != nil {
		return nil, err
	}

	verifiers := []decision.Verifier{
		&decision.ReplayVerifier{},
		decision.DefaultSmokeVerifier(),
	}
	if len(schemaJSON) > 0 {
		sv, err := decision.NewSchemaVerifier(schemaJSON)
		if err != nil {
			return nil, err
		}
		verifiers = append([]decision.Verifier{sv}, verifiers...)
	}

	retryPolicy := decision.NewRetryPolicy(decision.RetryPolicyConfig{
		MaxRetries:         cfg.Decision.MaxRetries,
		CategoryMaxRetries: cfg.Decision.CategoryMaxRetries,
		DeadlineWindow:     cfg.Decision.RetryDeadline,
	})

	return decision.NewLoop(calc, decision.NewVerificationSuite(verifiers...),
		decision.NewErrorClassifier(), retryPolicy, cfg.Decision.AcceptThreshold, nil), nil
}

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		logging.Get(logging.CategoryConfig).Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
