package domain

import (
	"fmt"
	"math"
)

// SkillModelParams are the tunables of the logistic skill/difficulty model.
type SkillModelParams struct {
	Scale         float64
	KUser         float64
	KQuestion     float64
	SkillMin      float64
	SkillMax      float64
	DifficultyMin float64
	DifficultyMax float64
}

// DefaultSkillModelParams returns the parameters the engine ships with.
func DefaultSkillModelParams() SkillModelParams {
	return SkillModelParams{
		Scale:         1.0,
		KUser:         0.3,
		KQuestion:     0.1,
		SkillMin:      -6.0,
		SkillMax:      6.0,
		DifficultyMin: -6.0,
		DifficultyMax: 6.0,
	}
}

// Validate checks the invariants the update rule relies on.
func (p SkillModelParams) Validate() error {
	switch {
	case !(p.Scale > 0) || math.IsInf(p.Scale, 0):
		return fmt.Errorf("scale must be a positive finite number, got %v", p.Scale)
	case !(p.KQuestion > 0):
		return fmt.Errorf("k_question must be positive, got %v", p.KQuestion)
	case !(p.KUser > p.KQuestion):
		return fmt.Errorf("k_user (%v) must be larger than k_question (%v)", p.KUser, p.KQuestion)
	case !(p.SkillMin < p.SkillMax):
		return fmt.Errorf("skill bounds [%v, %v] are empty", p.SkillMin, p.SkillMax)
	case !(p.DifficultyMin < p.DifficultyMax):
		return fmt.Errorf("difficulty bounds [%v, %v] are empty", p.DifficultyMin, p.DifficultyMax)
	}
	return nil
}

// Update is the result of applying one observed outcome.
type Update struct {
	Skill       float64
	Difficulty  float64
	Probability float64
}

// SkillModel predicts success probabilities and moves skill and difficulty after an outcome.
// It is stateless and safe for concurrent use.
type SkillModel struct {
	params SkillModelParams
}

func NewSkillModel(params SkillModelParams) (*SkillModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SkillModel{params: params}, nil
}

func (m *SkillModel) Params() SkillModelParams {
	return m.params
}

// PredictSuccess returns the probability, strictly inside (0,1), that a user with the given
// skill answers a question of the given difficulty correctly.
func (m *SkillModel) PredictSuccess(skill, difficulty float64) float64 {
	return logistic((skill - difficulty) / m.params.Scale)
}

// ApplyOutcome computes the post-outcome skill and difficulty from the pre-update values.
func (m *SkillModel) ApplyOutcome(skill, difficulty float64, correct bool) Update {
	p := m.PredictSuccess(skill, difficulty)
	observed := 0.0
	if correct {
		observed = 1.0
	}
	residual := observed - p
	return Update{
		Skill:       m.ClampSkill(skill + m.params.KUser*residual),
		Difficulty:  m.ClampDifficulty(difficulty - m.params.KQuestion*residual),
		Probability: p,
	}
}

func (m *SkillModel) ClampSkill(v float64) float64 {
	return clamp(v, m.params.SkillMin, m.params.SkillMax)
}

func (m *SkillModel) ClampDifficulty(v float64) float64 {
	return clamp(v, m.params.DifficultyMin, m.params.DifficultyMax)
}

// logistic evaluates 1/(1+e^-x) without overflow for any magnitude of x.
func logistic(x float64) float64 {
	var p float64
	if x >= 0 {
		p = 1 / (1 + math.Exp(-x))
	} else {
		z := math.Exp(x)
		p = z / (1 + z)
	}
	if p <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if p >= 1 {
		return math.Nextafter(1, 0)
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
