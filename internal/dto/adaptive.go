package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"quizierra/internal/domain"
)

// StartSessionRequest opens (or resumes) a user's adaptive session.
type StartSessionRequest struct {
	UserID string `json:"user_id" validate:"required,opaqueid"`
}

// StartSessionResponse reports the user's current skill.
type StartSessionResponse struct {
	UserID string  `json:"user_id"`
	Skill  float64 `json:"skill"`
}

// NextQuestionRequest asks for the next question.
// A missing allowed_question_ids means every known question; an empty list allows none.
type NextQuestionRequest struct {
	UserID             string    `json:"user_id" validate:"required,opaqueid"`
	AllowedQuestionIDs *[]string `json:"allowed_question_ids,omitempty"`
	TargetP            *float64  `json:"target_p,omitempty" validate:"omitempty,gt=0,lt=1"`
	ExcludeLastN       *int      `json:"exclude_last_n,omitempty" validate:"omitempty,min=0"`
}

// ToDomain converts the request into a domain.SelectRequest.
func (r *NextQuestionRequest) ToDomain() domain.SelectRequest {
	req := domain.SelectRequest{
		UserID:            r.UserID,
		TargetProbability: r.TargetP,
		ExcludeLastN:      r.ExcludeLastN,
	}
	if r.AllowedQuestionIDs != nil {
		req.Restriction = append([]string{}, (*r.AllowedQuestionIDs)...)
	}
	return req
}

// NextQuestionResponse describes the selected question.
type NextQuestionResponse struct {
	QuestionID           string                  `json:"question_id"`
	Text                 string                  `json:"text,omitempty"`
	Difficulty           float64                 `json:"difficulty"`
	DifficultyLabel      string                  `json:"difficulty_label"`
	Metadata             domain.QuestionMetadata `json:"metadata"`
	PredictedProbability float64                 `json:"predicted_p"`
	UserSkill            float64                 `json:"user_skill"`
	RecencyFallback      bool                    `json:"recency_fallback"`
}

// NewNextQuestionResponse projects a selection onto the wire format.
func NewNextQuestionResponse(s *domain.Selection) NextQuestionResponse {
	return NextQuestionResponse{
		QuestionID:           s.QuestionID,
		Text:                 s.Text,
		Difficulty:           s.Difficulty,
		DifficultyLabel:      s.DifficultyLabel,
		Metadata:             s.Metadata,
		PredictedProbability: s.PredictedProbability,
		UserSkill:            s.UserSkill,
		RecencyFallback:      s.FellBack,
	}
}

// RecordAnswerRequest reports an answer outcome.
// IsCorrect is a pointer so that a missing field is rejected instead of read as false.
type RecordAnswerRequest struct {
	UserID         string `json:"user_id" validate:"required,opaqueid"`
	QuestionID     string `json:"question_id" validate:"required,opaqueid"`
	IsCorrect      *bool  `json:"is_correct" validate:"required"`
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty" validate:"omitempty,min=0"`
}

// ToDomain converts the request into a domain.OutcomeRequest. Call it only after validation.
func (r *RecordAnswerRequest) ToDomain() domain.OutcomeRequest {
	return domain.OutcomeRequest{
		UserID:         r.UserID,
		QuestionID:     r.QuestionID,
		IsCorrect:      r.IsCorrect != nil && *r.IsCorrect,
		ResponseTimeMs: r.ResponseTimeMs,
	}
}

// RecordAnswerResponse carries the model state around an applied outcome.
type RecordAnswerResponse struct {
	InteractionID        string  `json:"interaction_id"`
	UserID               string  `json:"user_id"`
	QuestionID           string  `json:"question_id"`
	PrevSkill            float64 `json:"prev_skill"`
	NewSkill             float64 `json:"new_skill"`
	PrevDifficulty       float64 `json:"prev_difficulty"`
	NewDifficulty        float64 `json:"new_difficulty"`
	NewDifficultyLabel   string  `json:"new_difficulty_label"`
	PredictedProbability float64 `json:"predicted_p"`
}

// NewRecordAnswerResponse projects an outcome result onto the wire format.
func NewRecordAnswerResponse(r *domain.OutcomeResult) RecordAnswerResponse {
	return RecordAnswerResponse{
		InteractionID:        r.InteractionID,
		UserID:               r.UserID,
		QuestionID:           r.QuestionID,
		PrevSkill:            r.SkillBefore,
		NewSkill:             r.SkillAfter,
		PrevDifficulty:       r.DifficultyBefore,
		NewDifficulty:        r.DifficultyAfter,
		NewDifficultyLabel:   domain.LabelForDifficulty(r.DifficultyAfter),
		PredictedProbability: r.PredictedProbability,
	}
}

// DifficultyValue accepts either a label ("easy", "medium", "hard") or a number.
type DifficultyValue struct {
	Value float64
}

// UnmarshalJSON implements json.Unmarshaler
func (d *DifficultyValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		v, err := domain.ParseDifficulty(label)
		if err != nil {
			return err
		}
		d.Value = v
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("difficulty must be a label or a number: %w", err)
	}
	d.Value = v
	return nil
}

// MarshalJSON implements json.Marshaler
func (d DifficultyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Value)
}

// QuestionRequest registers a question. Difficulty is only applied to new questions.
type QuestionRequest struct {
	QuestionID string                   `json:"question_id" validate:"required,opaqueid"`
	Text       string                   `json:"text,omitempty"`
	Difficulty *DifficultyValue         `json:"difficulty,omitempty"`
	Metadata   *domain.QuestionMetadata `json:"metadata,omitempty"`
}

// ToDomain converts the request into a domain.QuestionInput.
func (r *QuestionRequest) ToDomain() domain.QuestionInput {
	in := domain.QuestionInput{ID: r.QuestionID, Text: r.Text}
	if r.Difficulty != nil {
		v := r.Difficulty.Value
		in.InitialDifficulty = &v
	}
	if r.Metadata != nil {
		in.Metadata = *r.Metadata
	}
	return in
}

// QuestionResponse reports a question's stored difficulty.
type QuestionResponse struct {
	QuestionID      string  `json:"question_id"`
	Difficulty      float64 `json:"difficulty"`
	DifficultyLabel string  `json:"difficulty_label"`
}

// InteractionResponse is one row of a user's answer history.
type InteractionResponse struct {
	ID                   string    `json:"id"`
	QuestionID           string    `json:"question_id"`
	IsCorrect            bool      `json:"is_correct"`
	ResponseTimeMs       *int64    `json:"response_time_ms,omitempty"`
	SkillBefore          float64   `json:"skill_before"`
	DifficultyBefore     float64   `json:"difficulty_before"`
	PredictedProbability float64   `json:"predicted_p"`
	AnsweredAt           time.Time `json:"answered_at"`
}

// HistoryResponse lists the most recent interactions first.
type HistoryResponse struct {
	UserID       string                `json:"user_id"`
	Interactions []InteractionResponse `json:"interactions"`
}

// NewHistoryResponse projects interactions onto the wire format.
func NewHistoryResponse(userID string, interactions []*domain.Interaction) HistoryResponse {
	out := make([]InteractionResponse, 0, len(interactions))
	for _, in := range interactions {
		out = append(out, InteractionResponse{
			ID:                   in.ID,
			QuestionID:           in.QuestionID,
			IsCorrect:            in.IsCorrect,
			ResponseTimeMs:       in.ResponseTimeMs,
			SkillBefore:          in.SkillBefore,
			DifficultyBefore:     in.DifficultyBefore,
			PredictedProbability: in.PredictedProbability,
			AnsweredAt:           in.CreatedAt,
		})
	}
	return HistoryResponse{UserID: userID, Interactions: out}
}

// UserStatsResponse summarizes a user's progress.
type UserStatsResponse struct {
	UserID         string     `json:"user_id"`
	Skill          float64    `json:"skill"`
	Answered       int        `json:"answered"`
	Correct        int        `json:"correct"`
	Accuracy       float64    `json:"accuracy"`
	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty"`
}

// NewUserStatsResponse projects user stats onto the wire format.
func NewUserStatsResponse(s *domain.UserStats) UserStatsResponse {
	return UserStatsResponse{
		UserID:         s.UserID,
		Skill:          s.Skill,
		Answered:       s.Answered,
		Correct:        s.Correct,
		Accuracy:       s.Accuracy(),
		LastAnsweredAt: s.LastAnsweredAt,
	}
}

// HealthResponse reports dependency health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}
