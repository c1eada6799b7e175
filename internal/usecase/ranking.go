package usecase

import (
	"sort"

	"PerspectiveEngine/internal/domain"
)

// scoredCandidate is a candidate that passed both thresholds.
type scoredCandidate struct {
	index     int
	article   domain.Article
	source    domain.PrimarySource
	alignment domain.Alignment
	overlap   float64
	semantic  float64
	combined  float64
	common    []string
}

// rankCandidates orders by combined score, then breaks near-ties in favour of
// the source whose alignment is furthest from the main article's.
//
// Groups are formed greedily from the top: a candidate joins the current group
// while anchor-score < tieBand, where anchor is the group's best score. Inside a
// group the order is alignment distance desc, score desc, candidate index asc.
func rankCandidates(candidates []scoredCandidate, mainAlignment int, tieBand float64) []scoredCandidate {
	ranked := make([]scoredCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].combined != ranked[j].combined {
			return ranked[i].combined > ranked[j].combined
		}
		return ranked[i].index < ranked[j].index
	})

	for start := 0; start < len(ranked); {
		anchor := ranked[start].combined
		end := start + 1
		for end < len(ranked) && anchor-ranked[end].combined < tieBand {
			end++
		}

		group := ranked[start:end]
		sort.SliceStable(group, func(i, j int) bool {
			di := alignmentDistance(group[i].alignment.Score, mainAlignment)
			dj := alignmentDistance(group[j].alignment.Score, mainAlignment)
			if di != dj {
				return di > dj
			}
			if group[i].combined != group[j].combined {
				return group[i].combined > group[j].combined
			}
			return group[i].index < group[j].index
		})
		start = end
	}

	return ranked
}

func alignmentDistance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
