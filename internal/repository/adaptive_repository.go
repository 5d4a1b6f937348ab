package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"quizierra/internal/domain"
	"quizierra/internal/repository/models"
	"quizierra/internal/util"

	"github.com/jmoiron/sqlx"
)

// listChunkSize bounds the number of bind variables in one IN clause.
const listChunkSize = 500

// AdaptiveRepository implements domain.AdaptiveRepository using sqlx.
// Queries are written with '?' placeholders and rebound for the active driver.
type AdaptiveRepository struct {
	db *sqlx.DB
}

// NewAdaptiveRepository creates a new instance of AdaptiveRepository.
func NewAdaptiveRepository(db *sqlx.DB) domain.AdaptiveRepository {
	return &AdaptiveRepository{db: db}
}

func (r *AdaptiveRepository) exec(ctx context.Context) DBTX {
	return GetExecutor(ctx, r.db)
}

// --- Converters ---

func toDomainUserSkill(m *models.UserSkill) *domain.UserSkill {
	if m == nil {
		return nil
	}
	return &domain.UserSkill{
		UserID:      m.UserID,
		Skill:       m.Skill,
		Version:     m.Version,
		LastUpdated: util.FromUnixMillis(m.LastUpdated),
		CreatedAt:   util.FromUnixMillis(m.CreatedAt),
	}
}

func toDomainQuestion(m *models.Question) *domain.Question {
	if m == nil {
		return nil
	}
	return &domain.Question{
		ID:         m.QuestionID,
		Text:       m.Text,
		Difficulty: m.Difficulty,
		Metadata:   domain.QuestionMetadata(m.Metadata),
		Version:    m.Version,
		CreatedAt:  util.FromUnixMillis(m.CreatedAt),
		UpdatedAt:  util.FromUnixMillis(m.UpdatedAt),
	}
}

func toDomainInteraction(m *models.Interaction) *domain.Interaction {
	if m == nil {
		return nil
	}
	return &domain.Interaction{
		ID:                   m.ID,
		Seq:                  m.Seq,
		UserID:               m.UserID,
		QuestionID:           m.QuestionID,
		IsCorrect:            m.IsCorrect,
		ResponseTimeMs:       util.NullToInt64Ptr(m.ResponseTimeMs),
		SkillBefore:          util.NullFloat64Or(m.SkillBefore, 0),
		DifficultyBefore:     util.NullFloat64Or(m.DifficultyBefore, 0),
		PredictedProbability: util.NullFloat64Or(m.PredictedProbability, 0),
		CreatedAt:            util.FromUnixMillis(m.CreatedAt),
	}
}

// --- User skill ---

func (r *AdaptiveRepository) GetUserSkill(ctx context.Context, userID string) (*domain.UserSkill, error) {
	ex := r.exec(ctx)
	var row models.UserSkill
	query := ex.Rebind(`SELECT user_id, skill, version, last_updated, created_at FROM user_skill WHERE user_id = ?`)
	if err := ex.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user skill: %w", err)
	}
	return toDomainUserSkill(&row), nil
}

func (r *AdaptiveRepository) InsertUserSkillIfAbsent(ctx context.Context, skill *domain.UserSkill) (bool, error) {
	ex := r.exec(ctx)
	query := ex.Rebind(`INSERT INTO user_skill (user_id, skill, version, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`)

	now := util.UnixMillis(skill.LastUpdated)
	result, err := ex.ExecContext(ctx, query, skill.UserID, skill.Skill, skill.Version, now, util.UnixMillis(skill.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert user skill: %w", err)
	}
	return rowsChanged(result)
}

func (r *AdaptiveRepository) UpdateUserSkill(ctx context.Context, userID string, skill float64, expectedVersion int64, at time.Time) error {
	ex := r.exec(ctx)
	query := ex.Rebind(`UPDATE user_skill SET skill = ?, version = version + 1, last_updated = ?
		WHERE user_id = ? AND version = ?`)

	result, err := ex.ExecContext(ctx, query, skill, util.UnixMillis(at), userID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update user skill: %w", err)
	}
	return requireOneRow(result)
}

// --- Questions ---

const questionColumns = `question_id, text, difficulty, metadata, version, created_at, updated_at`

func (r *AdaptiveRepository) GetQuestion(ctx context.Context, questionID string) (*domain.Question, error) {
	ex := r.exec(ctx)
	var row models.Question
	query := ex.Rebind(`SELECT ` + questionColumns + ` FROM questions WHERE question_id = ?`)
	if err := ex.GetContext(ctx, &row, query, questionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return toDomainQuestion(&row), nil
}

func (r *AdaptiveRepository) InsertQuestionIfAbsent(ctx context.Context, q *domain.Question) (bool, error) {
	ex := r.exec(ctx)
	query := ex.Rebind(`INSERT INTO questions (` + questionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (question_id) DO NOTHING`)

	result, err := ex.ExecContext(ctx, query,
		q.ID, q.Text, q.Difficulty, models.MetadataJSON(q.Metadata), q.Version,
		util.UnixMillis(q.CreatedAt), util.UnixMillis(q.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert question: %w", err)
	}
	return rowsChanged(result)
}

func (r *AdaptiveRepository) UpdateQuestionDifficulty(ctx context.Context, questionID string, difficulty float64, expectedVersion int64, at time.Time) error {
	ex := r.exec(ctx)
	query := ex.Rebind(`UPDATE questions SET difficulty = ?, version = version + 1, updated_at = ?
		WHERE question_id = ? AND version = ?`)

	result, err := ex.ExecContext(ctx, query, difficulty, util.UnixMillis(at), questionID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update question difficulty: %w", err)
	}
	return requireOneRow(result)
}

func (r *AdaptiveRepository) ListQuestions(ctx context.Context, ids []string) ([]*domain.Question, error) {
	ex := r.exec(ctx)

	var rows []models.Question
	if ids == nil {
		query := `SELECT ` + questionColumns + ` FROM questions ORDER BY question_id`
		if err := ex.SelectContext(ctx, &rows, query); err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
	} else {
		for start := 0; start < len(ids); start += listChunkSize {
			end := start + listChunkSize
			if end > len(ids) {
				end = len(ids)
			}
			query, args, err := sqlx.In(`SELECT `+questionColumns+` FROM questions WHERE question_id IN (?)`, ids[start:end])
			if err != nil {
				return nil, fmt.Errorf("failed to build question list query: %w", err)
			}
			var chunk []models.Question
			if err := ex.SelectContext(ctx, &chunk, ex.Rebind(query), args...); err != nil {
				return nil, fmt.Errorf("failed to list questions: %w", err)
			}
			rows = append(rows, chunk...)
		}
		// Duplicate ids in the request must not produce duplicate rows across chunks.
		sort.Slice(rows, func(i, j int) bool { return rows[i].QuestionID < rows[j].QuestionID })
		rows = dedupeQuestions(rows)
	}

	questions := make([]*domain.Question, 0, len(rows))
	for i := range rows {
		questions = append(questions, toDomainQuestion(&rows[i]))
	}
	return questions, nil
}

func dedupeQuestions(rows []models.Question) []models.Question {
	out := rows[:0]
	for i, row := range rows {
		if i > 0 && row.QuestionID == rows[i-1].QuestionID {
			continue
		}
		out = append(out, row)
	}
	return out
}

// --- Interactions ---

func (r *AdaptiveRepository) AppendInteraction(ctx context.Context, in *domain.Interaction) error {
	ex := r.exec(ctx)
	query := ex.Rebind(`INSERT INTO interactions
		(id, user_id, question_id, is_correct, response_time_ms, skill_before, difficulty_before, predicted_probability, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING seq`)

	err := ex.QueryRowxContext(ctx, query,
		in.ID, in.UserID, in.QuestionID, in.IsCorrect, util.Int64PtrToNull(in.ResponseTimeMs),
		in.SkillBefore, in.DifficultyBefore, in.PredictedProbability, util.UnixMillis(in.CreatedAt),
	).Scan(&in.Seq)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

func (r *AdaptiveRepository) RecentQuestionIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ex := r.exec(ctx)
	query := ex.Rebind(`SELECT question_id FROM interactions WHERE user_id = ? ORDER BY seq DESC LIMIT ?`)

	var ids []string
	if err := ex.SelectContext(ctx, &ids, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent question ids: %w", err)
	}
	return ids, nil
}

func (r *AdaptiveRepository) RecentInteractions(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error) {
	if limit <= 0 {
		return []*domain.Interaction{}, nil
	}
	ex := r.exec(ctx)
	query := ex.Rebind(`SELECT seq, id, user_id, question_id, is_correct, response_time_ms, skill_before,
		difficulty_before, predicted_probability, created_at
		FROM interactions WHERE user_id = ? ORDER BY seq DESC LIMIT ?`)

	var rows []models.Interaction
	if err := ex.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent interactions: %w", err)
	}

	interactions := make([]*domain.Interaction, 0, len(rows))
	for i := range rows {
		interactions = append(interactions, toDomainInteraction(&rows[i]))
	}
	return interactions, nil
}

func (r *AdaptiveRepository) InteractionStats(ctx context.Context, userID string) (int, int, *time.Time, error) {
	ex := r.exec(ctx)
	query := ex.Rebind(`SELECT COUNT(*) AS answered,
		COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct,
		MAX(created_at) AS last_at
		FROM interactions WHERE user_id = ?`)

	var row struct {
		Answered int64         `db:"answered"`
		Correct  int64         `db:"correct"`
		LastAt   sql.NullInt64 `db:"last_at"`
	}
	if err := ex.GetContext(ctx, &row, query, userID); err != nil {
		return 0, 0, nil, fmt.Errorf("failed to get interaction stats: %w", err)
	}

	var lastAt *time.Time
	if row.LastAt.Valid {
		t := util.FromUnixMillis(row.LastAt.Int64)
		lastAt = &t
	}
	return int(row.Answered), int(row.Correct), lastAt, nil
}

// --- helpers ---

func rowsChanged(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}
