package domain

import (
	"context"
	"time"
)

// AdaptiveRepository is the storage port owned by the adaptive engine.
// Point lookups return (nil, nil) when the record does not exist.
type AdaptiveRepository interface {
	GetUserSkill(ctx context.Context, userID string) (*UserSkill, error)
	// InsertUserSkillIfAbsent reports whether a row was created.
	InsertUserSkillIfAbsent(ctx context.Context, skill *UserSkill) (bool, error)
	// UpdateUserSkill writes only when the stored version equals expectedVersion, else ErrConflict.
	UpdateUserSkill(ctx context.Context, userID string, skill float64, expectedVersion int64, at time.Time) error

	GetQuestion(ctx context.Context, questionID string) (*Question, error)
	InsertQuestionIfAbsent(ctx context.Context, question *Question) (bool, error)
	UpdateQuestionDifficulty(ctx context.Context, questionID string, difficulty float64, expectedVersion int64, at time.Time) error
	// ListQuestions returns all questions when ids is nil, otherwise the subset with those ids, ordered by id.
	ListQuestions(ctx context.Context, ids []string) ([]*Question, error)

	AppendInteraction(ctx context.Context, interaction *Interaction) error
	// RecentQuestionIDs returns question ids of the user's last limit interactions, most recent first.
	RecentQuestionIDs(ctx context.Context, userID string, limit int) ([]string, error)
	RecentInteractions(ctx context.Context, userID string, limit int) ([]*Interaction, error)
	InteractionStats(ctx context.Context, userID string) (answered int, correct int, lastAt *time.Time, err error)
}

// TransactionManager runs fn inside one storage transaction carried by the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
