package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"quizierra/internal/domain"
)

// UserSkill maps the user_skill table. Timestamps are unix milliseconds.
type UserSkill struct {
	UserID      string  `db:"user_id"`
	Skill       float64 `db:"skill"`
	Version     int64   `db:"version"`
	LastUpdated int64   `db:"last_updated"`
	CreatedAt   int64   `db:"created_at"`
}

// Question maps the questions table.
type Question struct {
	QuestionID string       `db:"question_id"`
	Text       string       `db:"text"`
	Difficulty float64      `db:"difficulty"`
	Metadata   MetadataJSON `db:"metadata"`
	Version    int64        `db:"version"`
	CreatedAt  int64        `db:"created_at"`
	UpdatedAt  int64        `db:"updated_at"`
}

// Interaction maps the interactions table. Snapshot columns are NULL for rows
// written before they were introduced.
type Interaction struct {
	Seq                  int64           `db:"seq"`
	ID                   string          `db:"id"`
	UserID               string          `db:"user_id"`
	QuestionID           string          `db:"question_id"`
	IsCorrect            bool            `db:"is_correct"`
	ResponseTimeMs       sql.NullInt64   `db:"response_time_ms"`
	SkillBefore          sql.NullFloat64 `db:"skill_before"`
	DifficultyBefore     sql.NullFloat64 `db:"difficulty_before"`
	PredictedProbability sql.NullFloat64 `db:"predicted_probability"`
	CreatedAt            int64           `db:"created_at"`
}

// MetadataJSON stores question metadata as a JSON document in a TEXT column.
type MetadataJSON domain.QuestionMetadata

// Value implements the driver.Valuer interface
func (m MetadataJSON) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (m *MetadataJSON) Scan(value interface{}) error {
	if value == nil {
		*m = MetadataJSON{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("MetadataJSON Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(data) == 0 || string(data) == "null" {
		*m = MetadataJSON{}
		return nil
	}
	return json.Unmarshal(data, m)
}
