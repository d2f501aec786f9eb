package envelope

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"contextkit/internal/logging"
)

// Publisher delivers a validated payload to the transport.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, payload []byte) error
}

// ValidatingPublisher gates every delivery through schema validation.
// A payload with issues is blocked and the issues are returned; the
// inner publisher never sees it.
type ValidatingPublisher struct {
	validator *Validator
	inner     Publisher
	log       *zap.Logger
}

// NewValidatingPublisher wraps inner with validation.
func NewValidatingPublisher(validator *Validator, inner Publisher) *ValidatingPublisher {
	return &ValidatingPublisher{
		validator: validator,
		inner:     inner,
		log:       logging.Get(logging.CategoryEnvelope),
	}
}

// PublishValue marshals, validates, and delivers one payload.
func (p *ValidatingPublisher) PublishValue(ctx context.Context, kind Kind, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", kind, err)
	}
	return p.Publish(ctx, kind, payload)
}

func (p *ValidatingPublisher) Publish(ctx context.Context, kind Kind, payload []byte) error {
	if issues := p.validator.Validate(kind, payload); len(issues) > 0 {
		for _, issue := range issues {
			p.log.Error("payload blocked",
				zap.String("kind", string(kind)),
				zap.String("path", issue.Path),
				zap.String("message", issue.Message))
		}
		return &ValidationError{Kind: kind, Issues: issues}
	}
	return p.inner.Publish(ctx, kind, payload)
}
