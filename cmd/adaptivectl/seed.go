package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"quizierra/internal/bootstrap"
	"quizierra/internal/domain"
	"quizierra/internal/dto"
	"quizierra/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Register questions from a JSON array; existing questions keep their difficulty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := readSeedFile(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				for i, q := range questions {
					difficulty, err := app.Service.EnsureQuestion(ctx, q.ToDomain())
					if err != nil {
						return fmt.Errorf("question %d (%q): %w", i, q.QuestionID, err)
					}
					logger.Get().Debug("Seeded question",
						zap.String("question_id", q.QuestionID),
						zap.Float64("difficulty", difficulty),
					)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\t%s\n", q.QuestionID, difficulty, domain.LabelForDifficulty(difficulty))
				}
				return nil
			})
		},
	}
}

func readSeedFile(path string) ([]dto.QuestionRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var questions []dto.QuestionRequest
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return questions, nil
}
