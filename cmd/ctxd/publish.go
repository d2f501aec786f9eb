package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"contextkit/internal/envelope"
)

// stdoutPublisher writes payloads to standard output, pretty-printed.
type stdoutPublisher struct{}

func (stdoutPublisher) Publish(_ context.Context, _ envelope.Kind, payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}

// newStdoutPublisher builds the validating publisher the commands emit
// through. Payloads that fail schema validation never reach stdout.
func newStdoutPublisher() (*envelope.ValidatingPublisher, error) {
	validator, err := envelope.NewValidator()
	if err != nil {
		return nil, err
	}
	return envelope.NewValidatingPublisher(validator, stdoutPublisher{}), nil
}

// reportBlocked itemizes validation issues on stderr when the
// publisher refuses a payload. Other errors pass through unchanged.
func reportBlocked(err error) error {
	var verr *envelope.ValidationError
	if errors.As(err, &verr) {
		for _, issue := range verr.Issues {
			fmt.Fprintf(os.Stderr, "invalid %s at %s: %s\n", verr.Kind, issue.Path, issue.Message)
		}
	}
	return err
}
