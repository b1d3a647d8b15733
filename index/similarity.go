package index

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/ragline/core"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// RankHits sorts hits by score descending, breaking ties by IngestedAt
// descending and then DocID, and truncates to topK.
func RankHits(hits []core.Hit, topK int) []core.Hit {
	slices.SortFunc(hits, func(a, b core.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.IngestedAt.Compare(a.IngestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// HitFromRecord builds a search hit for rec with the given score.
func HitFromRecord(rec *core.DocumentRecord, score float32) core.Hit {
	return core.Hit{
		DocID:      rec.DocID,
		Text:       rec.Text,
		Metadata:   rec.Metadata,
		Score:      score,
		IngestedAt: rec.IngestedAt,
	}
}
