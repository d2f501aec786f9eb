package envelope

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Issue is one itemized validation failure.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports why a payload was blocked.
type ValidationError struct {
	Kind   Kind
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed validation with %d issue(s)", e.Kind, len(e.Issues))
}

const contextRequestSchema = `{
	"type": "object",
	"required": ["query"],
	"properties": {
		"query": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"type": "string", "enum": ["semantic", "keyword", "hybrid", "graph_traversal"]},
				"text": {"type": "string"},
				"filters": {"type": "object", "additionalProperties": {"type": "string"}},
				"graph_params": {
					"type": "object",
					"required": ["seed_ids"],
					"properties": {
						"seed_ids": {"type": "array", "items": {"type": "string"}, "minItems": 1},
						"depth": {"type": "integer", "minimum": 1, "maximum": 5}
					}
				},
				"limit": {"type": "integer", "minimum": 1, "maximum": 500}
			}
		},
		"limit": {"type": "integer", "minimum": 1, "maximum": 500},
		"include_scores": {"type": "boolean"}
	}
}`

const contextResultSchema = `{
	"type": "object",
	"required": ["results", "total_count", "sources", "explainability"],
	"properties": {
		"results": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "content", "metadata"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"content": {"type": "string"},
					"score": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		},
		"total_count": {"type": "integer", "minimum": 0},
		"query_duration_ms": {"type": "integer", "minimum": 0},
		"explainability": {
			"type": "object",
			"required": ["tldr", "affordances", "slicing_stats"],
			"properties": {
				"tldr": {"type": "string", "minLength": 1},
				"affordances": {"type": "array", "maxItems": 5}
			}
		}
	}
}`

const decisionNoticeSchema = `{
	"type": "object",
	"required": ["decision", "qscore", "verification_summary", "summary", "timestamp", "correlation_id", "idempotency_key"],
	"properties": {
		"decision": {"type": "string", "enum": ["ACCEPT", "RETRY", "ESCALATE"]},
		"qscore": {
			"type": "object",
			"required": ["score", "calibrated"],
			"properties": {
				"score": {"type": "number", "minimum": 0, "maximum": 1},
				"calibrated": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"correlation_id": {"type": "string", "minLength": 1},
		"idempotency_key": {"type": "string", "minLength": 1}
	}
}`

const retryDirectiveSchema = `{
	"type": "object",
	"required": ["retry_depth", "original_task", "failure_reason", "max_retries_remaining", "deadline", "correlation_id"],
	"properties": {
		"retry_depth": {"type": "integer", "minimum": 1},
		"original_task": {"type": "string", "minLength": 1},
		"failure_reason": {
			"type": "object",
			"required": ["category", "explanation"],
			"properties": {
				"category": {"type": "string", "minLength": 1},
				"explanation": {"type": "string"}
			}
		},
		"max_retries_remaining": {"type": "integer", "minimum": 0},
		"correlation_id": {"type": "string", "minLength": 1}
	}
}`

// Validator holds the compiled schemas for every payload kind.
// Compile once at startup; Validate is safe for concurrent use.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

// NewValidator compiles all payload schemas.
func NewValidator() (*Validator, error) {
	sources := map[Kind]string{
		KindContextRequest: contextRequestSchema,
		KindContextResult:  contextResultSchema,
		KindDecisionNotice: decisionNoticeSchema,
		KindRetryDirective: retryDirectiveSchema,
	}
	compiler := jsonschema.NewCompiler()
	schemas := make(map[Kind]*jsonschema.Schema, len(sources))
	for kind, src := range sources {
		schema, err := compiler.Compile([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", kind, err)
		}
		schemas[kind] = schema
	}
	return &Validator{schemas: schemas}, nil
}

// Validate checks a raw payload against its kind's schema and returns
// every issue found, not just the first.
func (v *Validator) Validate(kind Kind, payload []byte) []Issue {
	schema, ok := v.schemas[kind]
	if !ok {
		return []Issue{{Path: "", Message: fmt.Sprintf("unknown payload kind %q", kind)}}
	}
	result := schema.ValidateJSON(payload)
	if result.IsValid() {
		return nil
	}
	return collectIssues(result.ToList())
}

func collectIssues(list *jsonschema.List) []Issue {
	if list == nil {
		return nil
	}
	var out []Issue
	var walk func(l *jsonschema.List)
	walk = func(l *jsonschema.List) {
		for _, msg := range l.Errors {
			out = append(out, Issue{Path: l.InstanceLocation, Message: msg})
		}
		for i := range l.Details {
			walk(&l.Details[i])
		}
	}
	walk(list)
	return out
}
