package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// bm25Lexical is the built-in BM25 lexical store named in the spec's data
// model ("local directory" kind, used when no external search engine is
// configured). No third-party BM25/full-text library appears anywhere in
// the reference pack, so this is a small hand-rolled inverted index; see
// DESIGN.md's stdlib-justification section.
type bm25Lexical struct {
	mu    sync.RWMutex
	docs  map[string]bm25Doc
	df    map[string]int // document frequency per term
	avgLn float64
}

type bm25Doc struct {
	text     string
	terms    []string
	termFreq map[string]int
	metadata map[string]string
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// NewBM25Lexical returns the built-in BM25 lexical store.
func NewBM25Lexical() LexicalStore {
	return &bm25Lexical{docs: make(map[string]bm25Doc), df: make(map[string]int)}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func (b *bm25Lexical) Upsert(_ context.Context, items []LexicalItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range items {
		if old, ok := b.docs[it.ID]; ok {
			for t := range uniq(old.terms) {
				b.df[t]--
				if b.df[t] <= 0 {
					delete(b.df, t)
				}
			}
		}
		terms := tokenize(it.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			b.df[t]++
		}
		b.docs[it.ID] = bm25Doc{text: it.Text, terms: terms, termFreq: tf, metadata: copyStringMap(it.Metadata)}
	}
	b.recomputeAvgLen()
	return nil
}

func uniq(terms []string) map[string]struct{} {
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

func (b *bm25Lexical) recomputeAvgLen() {
	if len(b.docs) == 0 {
		b.avgLn = 0
		return
	}
	var total int
	for _, d := range b.docs {
		total += len(d.terms)
	}
	b.avgLn = float64(total) / float64(len(b.docs))
}

func (b *bm25Lexical) Delete(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if old, ok := b.docs[id]; ok {
			for t := range uniq(old.terms) {
				b.df[t]--
				if b.df[t] <= 0 {
					delete(b.df, t)
				}
			}
			delete(b.docs, id)
		}
	}
	b.recomputeAvgLen()
	return nil
}

func (b *bm25Lexical) Search(_ context.Context, query string, topK int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	terms := tokenize(query)
	n := float64(len(b.docs))
	type scored struct {
		id    string
		score float64
	}
	var results []scored
	for id, d := range b.docs {
		var score float64
		dl := float64(len(d.terms))
		for _, t := range terms {
			f := float64(d.termFreq[t])
			if f == 0 {
				continue
			}
			df := float64(b.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/maxf(b.avgLn, 1)))
		}
		if score > 0 {
			results = append(results, scored{id: id, score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	if len(results) > topK {
		results = results[:topK]
	}
	raw := make([]float64, len(results))
	for i, r := range results {
		raw[i] = r.score
	}
	normalized := MinMaxNormalize(raw)
	hits := make([]LexicalHit, 0, len(results))
	for i, r := range results {
		if normalized[i] <= 0 {
			continue
		}
		d := b.docs[r.id]
		hits = append(hits, LexicalHit{ID: r.id, Score: normalized[i], Text: d.text, Metadata: copyStringMap(d.metadata)})
	}
	return hits, nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
