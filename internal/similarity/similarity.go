// Package similarity holds the pure scoring functions used to decide whether
// two articles cover the same story.
package similarity

import (
	"math"
	"strings"

	"PerspectiveEngine/internal/domain"
)

const (
	// EntityWeight and SemanticWeight form the combined score.
	EntityWeight   = 0.4
	SemanticWeight = 0.6
)

// EntityOverlap is the Jaccard similarity of the lower-cased entity sets.
// It is 0 when either side has no entities.
func EntityOverlap(a, b domain.ExtractedEntities) float64 {
	setA := lowerSet(a.All())
	setB := lowerSet(b.All())
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for member := range setA {
		if _, ok := setB[member]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// CommonEntities returns the entities of b that also appear in a, compared
// case-insensitively. b's casing and order are kept; duplicates are dropped.
func CommonEntities(a, b domain.ExtractedEntities) []string {
	setA := lowerSet(a.All())
	common := []string{}
	seen := map[string]struct{}{}
	for _, entity := range b.All() {
		key := normalize(entity)
		if key == "" {
			continue
		}
		if _, ok := setA[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		common = append(common, entity)
	}
	return common
}

// Cosine computes the cosine similarity of two embeddings.
// Mismatched lengths, empty or zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Combined weighs entity overlap and semantic similarity into one score.
func Combined(entityOverlap, semantic float64) float64 {
	return EntityWeight*entityOverlap + SemanticWeight*semantic
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if key := normalize(v); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
