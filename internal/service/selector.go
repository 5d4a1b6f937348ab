package service

import (
	"math"
	"sort"

	"quizierra/internal/domain"
)

// excludeRecent drops recently answered questions. When that would leave nothing,
// the full candidate list is returned and fellBack is true.
func excludeRecent(candidates []*domain.Question, recentIDs []string) (kept []*domain.Question, fellBack bool) {
	if len(recentIDs) == 0 || len(candidates) == 0 {
		return candidates, false
	}
	recent := make(map[string]struct{}, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = struct{}{}
	}

	kept = make([]*domain.Question, 0, len(candidates))
	for _, q := range candidates {
		if _, seen := recent[q.ID]; !seen {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return candidates, true
	}
	return kept, false
}

// pickClosest returns the question whose predicted success probability is nearest to
// target, breaking ties on the byte-wise lowest id. It returns nil for an empty list.
func pickClosest(model *domain.SkillModel, skill, target float64, candidates []*domain.Question) (*domain.Question, float64) {
	ordered := make([]*domain.Question, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var (
		best     *domain.Question
		bestP    float64
		bestDist = math.Inf(1)
	)
	for _, q := range ordered {
		p := model.PredictSuccess(skill, q.Difficulty)
		// Strict comparison keeps the earliest, lowest id on ties.
		if dist := math.Abs(p - target); dist < bestDist {
			best, bestP, bestDist = q, p, dist
		}
	}
	return best, bestP
}
