package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// IdempotencyKey derives a stable key for one decision attempt so
// downstream consumers can deduplicate redelivered notices. The input
// is canonicalized (RFC 8785) before hashing, so field order and
// whitespace never change the key.
func IdempotencyKey(traceID, task string, attempt int, reasons []string) (string, error) {
	sorted := append([]string(nil), reasons...)
	sort.Strings(sorted)

	payload, err := json.Marshal(map[string]any{
		"trace_id": traceID,
		"task":     task,
		"attempt":  attempt,
		"reasons":  sorted,
	})
	if err != nil {
		return "", fmt.Errorf("encoding idempotency payload: %w", err)
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalizing idempotency payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
