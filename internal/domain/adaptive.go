package domain

import "time"

// UserSkill is the engine's proficiency estimate for one user.
type UserSkill struct {
	UserID      string
	Skill       float64
	Version     int64
	LastUpdated time.Time
	CreatedAt   time.Time
}

// QuestionMetadata is supplied by the question generator and is read-only for the engine.
type QuestionMetadata struct {
	Answer      string   `json:"answer,omitempty"`
	Distractors []string `json:"distractors,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Question represents a question in the bank. Only Difficulty is ever changed by the engine.
type Question struct {
	ID         string
	Text       string
	Difficulty float64
	Metadata   QuestionMetadata
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DifficultyLabel projects the continuous difficulty onto easy|medium|hard.
func (q *Question) DifficultyLabel() string {
	return LabelForDifficulty(q.Difficulty)
}

// Interaction is an append-only record of one answered question.
type Interaction struct {
	ID                   string
	Seq                  int64
	UserID               string
	QuestionID           string
	IsCorrect            bool
	ResponseTimeMs       *int64
	SkillBefore          float64
	DifficultyBefore     float64
	PredictedProbability float64
	CreatedAt            time.Time
}

// UserStats summarises a user's history.
type UserStats struct {
	UserID         string
	Skill          float64
	Answered       int
	Correct        int
	LastAnsweredAt *time.Time
}

// Accuracy returns the share of correct answers, 0 when nothing was answered.
func (s *UserStats) Accuracy() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answered)
}

// SelectRequest asks for the next question. Nil optional fields fall back to configured defaults.
// A nil Restriction means every known question; a non-nil empty Restriction allows none.
type SelectRequest struct {
	UserID            string
	Restriction       []string
	TargetProbability *float64
	ExcludeLastN      *int
}

// Selection is the question chosen for a user.
type Selection struct {
	QuestionID           string
	Text                 string
	Difficulty           float64
	DifficultyLabel      string
	Metadata             QuestionMetadata
	PredictedProbability float64
	UserSkill            float64
	// FellBack is set when every allowed question was recently seen and recency exclusion was dropped.
	FellBack bool
}

// OutcomeRequest reports the result of a user answering a question.
type OutcomeRequest struct {
	UserID         string
	QuestionID     string
	IsCorrect      bool
	ResponseTimeMs *int64
}

// OutcomeResult carries the model state before and after an outcome was applied.
type OutcomeResult struct {
	UserID               string
	QuestionID           string
	InteractionID        string
	SkillBefore          float64
	SkillAfter           float64
	DifficultyBefore     float64
	DifficultyAfter      float64
	PredictedProbability float64
}

// QuestionInput registers a question. InitialDifficulty is only used when the question is new.
type QuestionInput struct {
	ID                string
	Text              string
	InitialDifficulty *float64
	Metadata          QuestionMetadata
}
