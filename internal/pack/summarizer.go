// Package pack assembles the delivery unit a specialist receives:
// sliced evidence, an extractive summary, suggested next actions, and
// an optional causal graph.
package pack

import (
	"sort"
	"strings"

	"contextkit/internal/slicing"
)

// EmptySummary is returned when there is nothing to summarize.
const EmptySummary = "No evidence available."

// Summary is the extractive TL;DR over the slice.
type Summary struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}

var summaryKeywords = []string{"error", "fail", "success", "fix", "issue", "problem", "solution"}

type scoredSentence struct {
	text     string
	itemIdx  int
	position int
	score    float64
}

// Summarizer extracts the most informative sentences from slice
// content. Scoring favors relevant items, early sentences, and a
// moderate sentence length; sentences mentioning outcome keywords get
// a flat bonus.
type Summarizer struct {
	// MaxSentences caps the summary length. Zero means 5.
	MaxSentences int
}

// Summarize builds the slice summary. Kept sentences are re-ordered by
// source item and original position rather than score, so the output
// reads as connected prose instead of a relevance dump.
func (s *Summarizer) Summarize(items []slicing.SlicedItem) Summary {
	limit := s.MaxSentences
	if limit <= 0 {
		limit = 5
	}
	if len(items) == 0 {
		return Summary{Text: EmptySummary}
	}

	var scored []scoredSentence
	for idx, item := range items {
		sentences := splitSentences(item.Content)
		for pos, sentence := range sentences {
			scored = append(scored, scoredSentence{
				text:     sentence,
				itemIdx:  idx,
				position: pos,
				score:    scoreSentence(sentence, pos, len(sentences), item.Result.Score),
			})
		}
	}
	if len(scored) == 0 {
		return Summary{Text: EmptySummary}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].itemIdx != scored[j].itemIdx {
			return scored[i].itemIdx < scored[j].itemIdx
		}
		return scored[i].position < scored[j].position
	})

	parts := make([]string, 0, len(scored))
	cited := map[int]bool{}
	var citations []string
	for _, sent := range scored {
		parts = append(parts, sent.text)
		if !cited[sent.itemIdx] {
			cited[sent.itemIdx] = true
			citations = append(citations, items[sent.itemIdx].Result.Candidate.ID)
		}
	}
	return Summary{Text: strings.Join(parts, ". ") + ".", Citations: citations}
}

func scoreSentence(sentence string, position, total int, relevance float64) float64 {
	positionBias := 1.0
	if total > 1 {
		positionBias = 1.0 - float64(position)/float64(total)
	}

	lengthPref := 0.0
	if n := len(sentence); n >= 20 && n <= 100 {
		lengthPref = 1.0
	} else if n > 100 {
		lengthPref = 0.5
	}

	score := 0.5*relevance + 0.3*positionBias + 0.2*lengthPref

	lower := strings.ToLower(sentence)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}
	return score
}

// splitSentences breaks content on sentence punctuation and newlines,
// dropping fragments too short to carry meaning.
func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) >= 10 {
			out = append(out, s)
		}
	}
	return out
}
