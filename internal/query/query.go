// Package query answers a natural-language question by retrieving context
// via internal/retrieve and asking the configured LLM to synthesize a
// cited answer.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ragcore/internal/completion"
	"ragcore/internal/errs"
	"ragcore/internal/model"
	"ragcore/internal/retrieve"
)

// Answer is the result of a question answered over retrieved context.
type Answer struct {
	Text      string
	Citations []Citation
}

// Citation points back at the chunk a sentence of the answer was drawn
// from.
type Citation struct {
	ChunkID     string
	DocID       string
	DisplayName string
}

// Engine composes a Retriever with an LLM to answer questions.
type Engine struct {
	Retriever  *retrieve.Retriever
	Completion completion.LLM
}

var citationRef = regexp.MustCompile(`\[(\d+)\]`)

// Ask retrieves context for question, asks the LLM to answer using only
// that context, and resolves bracketed citation markers like "[2]" back to
// the retrieved chunk they refer to.
func (e *Engine) Ask(ctx context.Context, question string, topK int, modes retrieve.Modes) (Answer, error) {
	nodes, err := e.Retriever.Search(ctx, question, topK, modes, retrieve.DefaultWeights)
	if err != nil {
		return Answer{}, &errs.RetrievalError{Err: err}
	}
	if len(nodes) == 0 {
		return Answer{Text: "No relevant context was found for this question."}, nil
	}

	prompt := buildPrompt(question, nodes)
	text, err := e.Completion.Complete(ctx, prompt, completion.Options{System: answerSystemPrompt})
	if err != nil {
		return Answer{}, err
	}

	return Answer{Text: text, Citations: resolveCitations(text, nodes)}, nil
}

const answerSystemPrompt = `Answer the user's question using only the numbered
context snippets provided. Cite the snippet number in brackets, e.g. "[2]",
next to any claim it supports. If the context does not contain the answer,
say so plainly.`

func buildPrompt(question string, nodes []model.RankedNode) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	for i, n := range nodes {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, n.DisplayName, n.Text)
	}
	return b.String()
}

func resolveCitations(text string, nodes []model.RankedNode) []Citation {
	seen := make(map[int]bool)
	var out []Citation
	for _, m := range citationRef.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(nodes) || seen[n] {
			continue
		}
		seen[n] = true
		node := nodes[n-1]
		out = append(out, Citation{ChunkID: node.ChunkID, DocID: node.DocID, DisplayName: node.DisplayName})
	}
	return out
}
