package kgextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragcore/internal/completion"
	"ragcore/internal/errs"
	"ragcore/internal/model"
)

type llmTriple struct {
	Subject     string `json:"subject"`
	SubjectType string `json:"subject_type"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	ObjectType  string `json:"object_type"`
}

// dynamicExtractor asks the configured LLM for an unconstrained list of
// triples, with no schema to validate against.
type dynamicExtractor struct {
	llm completion.LLM
}

// NewDynamic constructs an unconstrained LLM-backed extractor.
func NewDynamic(llm completion.LLM) Extractor {
	return &dynamicExtractor{llm: llm}
}

func (e *dynamicExtractor) Extract(ctx context.Context, chunk model.Chunk, maxTriples int) ([]model.Triple, error) {
	if maxTriples <= 0 {
		maxTriples = 10
	}
	prompt := fmt.Sprintf(extractPrompt, maxTriples, chunk.Text)
	raw, err := e.llm.Complete(ctx, prompt, completion.Options{System: extractSystemPrompt})
	if err != nil {
		return nil, &errs.KGExtractionError{Err: err}
	}
	parsed, err := parseTriples(raw)
	if err != nil {
		return nil, &errs.KGExtractionError{Err: err}
	}
	return toModelTriples(parsed, chunk, maxTriples, nil), nil
}

// schemaExtractor asks the configured LLM for triples then drops any that
// don't satisfy the configured schema's allowed (subject_type, predicate,
// object_type) triples, per spec section 4.1's schema-constrained mode.
type schemaExtractor struct {
	llm    completion.LLM
	schema model.Schema
}

// NewSchema constructs a schema-constrained LLM-backed extractor.
func NewSchema(llm completion.LLM, schema model.Schema) Extractor {
	return &schemaExtractor{llm: llm, schema: schema}
}

func (e *schemaExtractor) Extract(ctx context.Context, chunk model.Chunk, maxTriples int) ([]model.Triple, error) {
	if maxTriples <= 0 {
		maxTriples = 10
	}
	if e.schema.MaxTriplesPerChunk > 0 && e.schema.MaxTriplesPerChunk < maxTriples {
		maxTriples = e.schema.MaxTriplesPerChunk
	}
	prompt := fmt.Sprintf(schemaExtractPrompt, e.schema.Name,
		strings.Join(e.schema.EntityTypes, ", "), strings.Join(e.schema.RelationTypes, ", "),
		maxTriples, chunk.Text)
	raw, err := e.llm.Complete(ctx, prompt, completion.Options{System: extractSystemPrompt})
	if err != nil {
		return nil, &errs.KGExtractionError{Err: err}
	}
	parsed, err := parseTriples(raw)
	if err != nil {
		return nil, &errs.KGExtractionError{Err: err}
	}
	filter := func(t llmTriple) bool {
		return e.schema.Allows(t.SubjectType, t.Predicate, t.ObjectType)
	}
	return toModelTriples(parsed, chunk, maxTriples, filter), nil
}

const extractSystemPrompt = `You extract factual relations from text and return only JSON, no prose.`

const extractPrompt = `Extract up to %d subject-predicate-object triples from the
following text. Respond with a JSON array of objects with keys "subject",
"subject_type", "predicate", "object", "object_type".

Text:
%s`

const schemaExtractPrompt = `Extract up to %[4]d subject-predicate-object
triples from the text below, using only schema %[1]s.
Allowed entity types: %[2]s.
Allowed relation types: %[3]s.
Respond with a JSON array of objects with keys "subject", "subject_type",
"predicate", "object", "object_type". Omit any triple whose types or
predicate are not in the allowed lists.

Text:
%[5]s`

func parseTriples(raw string) ([]llmTriple, error) {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			raw = raw[start : end+1]
		}
	}
	var out []llmTriple
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse triple response: %w", err)
	}
	return out, nil
}

func toModelTriples(parsed []llmTriple, chunk model.Chunk, maxTriples int, filter func(llmTriple) bool) []model.Triple {
	out := make([]model.Triple, 0, len(parsed))
	for _, t := range parsed {
		if len(out) >= maxTriples {
			break
		}
		if t.Subject == "" || t.Object == "" || t.Predicate == "" {
			continue
		}
		if filter != nil && !filter(t) {
			continue
		}
		out = append(out, model.Triple{
			SubjectLabel: t.Subject,
			SubjectType:  t.SubjectType,
			Predicate:    t.Predicate,
			ObjectLabel:  t.Object,
			ObjectType:   t.ObjectType,
			ChunkID:      chunk.ChunkID,
			DocID:        chunk.DocID,
		})
	}
	return out
}
