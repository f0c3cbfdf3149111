package vectorstore

import (
	"sort"

	"studyrag/internal/domain"
)

// Candidate is a scored chunk plus the insertion order of its document.
type Candidate struct {
	Result   domain.SearchResult
	DocOrder int64
}

// TopK orders candidates by score descending, breaking ties by document
// insertion order and then chunk index, and keeps the first k.
func TopK(cands []Candidate, k int) []domain.SearchResult {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Result.Score != b.Result.Score {
			return a.Result.Score > b.Result.Score
		}
		if a.DocOrder != b.DocOrder {
			return a.DocOrder < b.DocOrder
		}
		return a.Result.Chunk.Index < b.Result.Chunk.Index
	})
	if k > len(cands) {
		k = len(cands)
	}
	if k < 0 {
		k = 0
	}
	out := make([]domain.SearchResult, k)
	for i := 0; i < k; i++ {
		out[i] = cands[i].Result
	}
	return out
}
