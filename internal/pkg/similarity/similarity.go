package similarity

import (
	"sort"

	"github.com/viant/vec/search"

	"ragweaver/internal/model"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score 0.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0
	}
	return 1 - va.CosineDistance(b)
}

// Rank scores chunks against query, keeps those scoring at least threshold
// and returns up to limit of them by descending score. Equal scores keep
// their input order.
func Rank(query []float32, chunks []model.Chunk, threshold float32, limit int) []model.ScoredChunk {
	if limit <= 0 || len(chunks) == 0 {
		return nil
	}

	scored := make([]model.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score := Cosine(query, c.Embedding)
		if score < threshold {
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
