package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"contextkit/internal/envelope"
	"contextkit/internal/policy"
)

var (
	queryRequestFile  string
	querySpecialistID string
	queryLevel        string
	queryScores       bool
	queryLimit        int
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve and slice a context pack for a specialist",
	Long: `Runs the full pipeline for one request: gather candidates from the
registered generators, rank, apply policy and budget, and print the
assembled context pack as JSON. The request can be given as plain
query text or as a full ContextRequest JSON file via --request.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryRequestFile, "request", "", "path to a ContextRequest JSON file")
	queryCmd.Flags().StringVar(&querySpecialistID, "specialist", "cli", "requesting specialist ID")
	queryCmd.Flags().StringVar(&queryLevel, "level", "internal", "specialist security level (public|internal|confidential|restricted)")
	queryCmd.Flags().BoolVar(&queryScores, "scores", false, "include per-item scores in the output")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum results to return (0 uses the configured default)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(args)
	if err != nil {
		return err
	}
	if queryLimit > 0 {
		req.Limit = queryLimit
	}
	if req.Limit > 0 {
		req.Query.Limit = req.Limit
	}

	builder, st, err := buildPipeline()
	if err != nil {
		return err
	}
	defer st.Close()

	specialist := policy.SpecialistMetadata{
		Type:          "cli",
		ID:            querySpecialistID,
		SecurityLevel: policy.SecurityLevel(queryLevel),
	}

	p, err := builder.Build(cmd.Context(), specialist, req.Query)
	if err != nil {
		return fmt.Errorf("building context pack: %w", err)
	}

	result := envelope.NewContextResult(p, queryScores || req.IncludeScores)

	pub, err := newStdoutPublisher()
	if err != nil {
		return err
	}
	if err := pub.PublishValue(cmd.Context(), envelope.KindContextResult, result); err != nil {
		return reportBlocked(err)
	}
	return nil
}

// loadRequest reads the ContextRequest from --request or builds a
// keyword request from the positional argument. File requests are
// schema-validated before anything runs.
func loadRequest(args []string) (envelope.ContextRequest, error) {
	var req envelope.ContextRequest
	if queryRequestFile == "" {
		if len(args) == 0 {
			return req, fmt.Errorf("either query text or --request is required")
		}
		req.Query.Type = "keyword"
		req.Query.Text = args[0]
		return req, nil
	}

	raw, err := os.ReadFile(queryRequestFile)
	if err != nil {
		return req, fmt.Errorf("reading request: %w", err)
	}
	validator, err := envelope.NewValidator()
	if err != nil {
		return req, err
	}
	if issues := validator.Validate(envelope.KindContextRequest, raw); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "invalid request at %s: %s\n", issue.Path, issue.Message)
		}
		return req, fmt.Errorf("request failed validation with %d issue(s)", len(issues))
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}
