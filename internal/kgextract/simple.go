package kgextract

import (
	"context"
	"regexp"
	"strings"

	"ragcore/internal/model"
)

// capitalizedRun matches runs of Title-Case words, used as a cheap stand-in
// for named-entity detection when no LLM is configured.
var capitalizedRun = regexp.MustCompile(`([A-Z][a-zA-Z0-9]+(?:\s+[A-Z][a-zA-Z0-9]+)*)`)

// simpleExtractor derives triples heuristically: adjacent capitalized spans
// in a sentence are linked by a generic "related_to" predicate. It needs no
// external provider and never fails, making it the default for tests and
// offline local runs.
type simpleExtractor struct{}

// NewSimple constructs the heuristic, LLM-free extractor.
func NewSimple() Extractor { return &simpleExtractor{} }

func (e *simpleExtractor) Extract(_ context.Context, chunk model.Chunk, maxTriples int) ([]model.Triple, error) {
	if maxTriples <= 0 {
		maxTriples = 10
	}
	var triples []model.Triple
	for _, sentence := range splitSentences(chunk.Text) {
		spans := capitalizedRun.FindAllString(sentence, -1)
		for i := 0; i+1 < len(spans) && len(triples) < maxTriples; i++ {
			a, b := strings.TrimSpace(spans[i]), strings.TrimSpace(spans[i+1])
			if a == "" || b == "" || a == b {
				continue
			}
			triples = append(triples, model.Triple{
				SubjectLabel: a,
				SubjectType:  "entity",
				Predicate:    "related_to",
				ObjectLabel:  b,
				ObjectType:   "entity",
				ChunkID:      chunk.ChunkID,
				DocID:        chunk.DocID,
			})
		}
		if len(triples) >= maxTriples {
			break
		}
	}
	return triples, nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == '!' || r == '?'
	})
}
