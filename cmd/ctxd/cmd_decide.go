package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"contextkit/internal/decision"
	"contextkit/internal/envelope"
)

var (
	decideResultFile string
	decideSchemaFile string
)

// decideInput is the judgment request read from file or stdin.
type decideInput struct {
	TraceID string                     `json:"trace_id"`
	Result  decision.SpecialistResult  `json:"result"`
	Meta    decision.ExecutionMetadata `json:"metadata"`
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Judge a specialist result through the quality loop",
	Long: `Scores and verifies one specialist result, classifies any failure,
and prints the decision notice. When the outcome is RETRY the retry
directive is printed as well. Reads the judgment request from
--result or stdin.`,
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().StringVar(&decideResultFile, "result", "", "path to judgment request JSON (default stdin)")
	decideCmd.Flags().StringVar(&decideSchemaFile, "schema", "", "path to the expected result payload schema")
}

func runDecide(cmd *cobra.Command, args []string) error {
	raw, err := readInput()
	if err != nil {
		return err
	}
	var in decideInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decoding judgment request: %w", err)
	}

	var schemaJSON []byte
	if decideSchemaFile != "" {
		schemaJSON, err = os.ReadFile(decideSchemaFile)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
	}

	loop, err := buildLoop(schemaJSON)
	if err != nil {
		return err
	}

	loopInput := decision.Input{TraceID: in.TraceID, Result: in.Result, Meta: in.Meta}
	res, err := loop.Decide(cmd.Context(), loopInput)
	if err != nil {
		return err
	}

	pub, err := newStdoutPublisher()
	if err != nil {
		return err
	}

	notice := envelope.NewDecisionNotice(res)
	if err := pub.PublishValue(cmd.Context(), envelope.KindDecisionNotice, notice); err != nil {
		return reportBlocked(err)
	}

	if directive, ok := envelope.NewRetryDirective(res, loopInput); ok {
		if err := pub.PublishValue(cmd.Context(), envelope.KindRetryDirective, directive); err != nil {
			return reportBlocked(err)
		}
	}
	return nil
}

func readInput() ([]byte, error) {
	if decideResultFile != "" {
		raw, err := os.ReadFile(decideResultFile)
		if err != nil {
			return nil, fmt.Errorf("reading result: %w", err)
		}
		return raw, nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return raw, nil
}
