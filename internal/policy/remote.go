package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
)

// RemoteEvaluator consults an external policy-decision service over
// HTTP. One POST per (specialist, candidate) pair; wrap with a
// CachingEvaluator in production.
type RemoteEvaluator struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewRemoteEvaluator builds an evaluator against the given decision
// endpoint. A zero timeout defaults to 3s.
func NewRemoteEvaluator(url string, timeout time.Duration) *RemoteEvaluator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteEvaluator{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type policyRequest struct {
	Specialist SpecialistMetadata `json:"specialist"`
	Candidate  struct {
		ID          string `json:"id"`
		Source      string `json:"source"`
		Sensitivity string `json:"sensitivity"`
	} `json:"candidate"`
}

func (e *RemoteEvaluator) Evaluate(ctx context.Context, specialist SpecialistMetadata, candidate evidence.Candidate) (Decision, error) {
	req := policyRequest{Specialist: specialist}
	req.Candidate.ID = candidate.ID
	req.Candidate.Source = candidate.Meta.Source
	req.Candidate.Sensitivity = candidate.Meta.Sensitivity.String()

	body, err := json.Marshal(req)
	if err != nil {
		return Decision{}, fmt.Errorf("encoding policy request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("building policy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Decision{}, fmt.Errorf("policy service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Decision{}, fmt.Errorf("policy service returned %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("decoding policy response: %w", err)
	}

	logging.Get(logging.CategoryPolicy).Debug("remote decision received")
	return decision, nil
}
