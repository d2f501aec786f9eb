package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"contextkit/internal/evidence"
	"contextkit/internal/store"
)

var ingestEmbed bool

// ingestRecord is one JSONL line of evidence to load.
type ingestRecord struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	Importance  float64   `json:"importance"`
	Trust       float64   `json:"trust"`
	Sensitivity string    `json:"sensitivity"`
	RelatedTo   []string  `json:"related_to,omitempty"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Load evidence records into the store",
	Long: `Reads JSONL evidence records and writes them to the configured
store, including graph edges for any related_to references. With
--embed, a deterministic embedding is stored per record so vector
retrieval works without an external embedding service.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestEmbed, "embed", false, "store hash embeddings for vector search")
}

func runIngest(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening evidence store: %w", err)
	}
	defer st.Close()

	embedder := evidence.NewHashingEmbedder(0)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line, loaded := 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec ingestRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if rec.ID == "" || rec.Content == "" {
			return fmt.Errorf("line %d: id and content are required", line)
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}

		err := st.Put(cmd.Context(), store.Record{
			ID:          rec.ID,
			Content:     rec.Content,
			Source:      rec.Source,
			CreatedAt:   rec.CreatedAt,
			Importance:  rec.Importance,
			Trust:       rec.Trust,
			Sensitivity: rec.Sensitivity,
		})
		if err != nil {
			return fmt.Errorf("line %d: storing %s: %w", line, rec.ID, err)
		}
		if ingestEmbed {
			vec, err := embedder.Embed(cmd.Context(), rec.Content)
			if err != nil {
				return fmt.Errorf("line %d: embedding %s: %w", line, rec.ID, err)
			}
			if err := st.PutEmbedding(cmd.Context(), rec.ID, vec); err != nil {
				return fmt.Errorf("line %d: storing embedding: %w", line, err)
			}
		}
		for _, related := range rec.RelatedTo {
			if err := st.PutEdge(cmd.Context(), store.Edge{From: rec.ID, To: related, Relation: "related"}); err != nil {
				return fmt.Errorf("line %d: storing edge: %w", line, err)
			}
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Printf("loaded %d record(s)\n", loaded)
	return nil
}
