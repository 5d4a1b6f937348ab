package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Label boundaries; anything within ±labelBoundary of zero is medium.
const labelBoundary = 0.5

var difficultyLabelValues = map[string]float64{
	DifficultyEasy:   -1.0,
	DifficultyMedium: 0.0,
	DifficultyHard:   1.0,
}

// DifficultyFromLabel maps easy|medium|hard to its numeric rating.
func DifficultyFromLabel(label string) (float64, bool) {
	v, ok := difficultyLabelValues[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

// ParseDifficulty accepts either a categorical label or a finite number.
func ParseDifficulty(s string) (float64, error) {
	if v, ok := DifficultyFromLabel(s); ok {
		return v, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("difficulty %q is neither easy|medium|hard nor a finite number", s)
	}
	return v, nil
}

// LabelForDifficulty is the display projection of a continuous difficulty.
func LabelForDifficulty(d float64) string {
	switch {
	case d < -labelBoundary:
		return DifficultyEasy
	case d > labelBoundary:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
