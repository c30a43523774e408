package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

const defaultRRFK = 60

// rankedList is one retrieval path's output in rank order.
type rankedList struct {
	path    string
	results []domain.RankedResult
}

type fusedCandidate struct {
	result     domain.RankedResult
	score      float64
	confidence float64
	paths      []string
}

// fuseCandidatesRRF merges ranked lists with Reciprocal Rank Fusion.
// Items keep the record of their first appearance; ties keep first-appearance order.
func fuseCandidatesRRF(rrfK int, lists ...rankedList) []domain.RankedResult {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate)
	order := make([]string, 0)
	for _, list := range lists {
		for rank, result := range list.results {
			key := result.ResultID()
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{result: result.Clone()}
				acc[key] = candidate
				order = append(order, key)
			} else if candidate.result.ResultContent() == "" && result.ResultContent() != "" {
				candidate.result = result.Clone()
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
			candidate.confidence = result.Rank().Confidence
			candidate.paths = appendPath(candidate.paths, list.path)
		}
	}

	out := make([]domain.RankedResult, 0, len(order))
	for _, key := range order {
		c := acc[key]
		rank := c.result.Rank()
		rank.RRFScore = domain.Round(c.score, 6)
		rank.Confidence = c.confidence
		rank.RetrievalPath = strings.Join(c.paths, "+")
		out = append(out, c.result)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return acc[out[i].ResultID()].score > acc[out[j].ResultID()].score
	})
	return out
}

func appendPath(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}

func trimResults[T any](results []T, limit int) []T {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func cloneResults(results []domain.RankedResult) []domain.RankedResult {
	out := make([]domain.RankedResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.Clone())
	}
	return out
}
