// Package lexical scores documents by query-token overlap. It needs no
// model and serves as the default reranker.
package lexical

import (
	"context"
	"strings"
	"unicode"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// Reranker blends the incoming order with token overlap and a label hit:
// 0.60 position prior, 0.30 overlap, 0.10 label match.
type Reranker struct{}

func New() *Reranker {
	return &Reranker{}
}

func (r *Reranker) Available() bool { return r != nil }

func (r *Reranker) Rerank(_ context.Context, query string, docs []domain.RerankDocument) (map[string]float64, error) {
	out := make(map[string]float64, len(docs))
	if len(docs) == 0 {
		return out, nil
	}
	queryTokens := toTokenSet(query)

	for i, doc := range docs {
		prior := 1.0
		if len(docs) > 1 {
			prior = 1 - float64(i)/float64(len(docs)-1)
		}
		overlap := tokenOverlap(queryTokens, toTokenSet(doc.Text))
		label := labelTokenHit(queryTokens, doc.Label)
		out[doc.ID] = 0.60*prior + 0.30*overlap + 0.10*label
	}
	return out, nil
}

func tokenOverlap(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := text[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func labelTokenHit(query map[string]struct{}, label string) float64 {
	if len(query) == 0 || label == "" {
		return 0
	}
	labelTokens := toTokenSet(label)
	for token := range query {
		if _, ok := labelTokens[token]; ok && token != "isa" {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
