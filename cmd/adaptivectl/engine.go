package main

import (
	"context"
	"errors"
	"fmt"

	"quizierra/internal/bootstrap"
	"quizierra/internal/domain"
	"quizierra/internal/dto"

	"github.com/spf13/cobra"
)

// errNoCandidates is reported when the selector has nothing to offer.
var errNoCandidates = errors.New("no candidate questions available")

func newSkillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skill <user>",
		Short: "Print a user's skill, creating the record on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				skill, err := app.Service.GetOrCreateSkill(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.StartSessionResponse{UserID: args[0], Skill: skill})
			})
		},
	}
}

func newNextCommand() *cobra.Command {
	var (
		target  float64
		exclude int
		allow   []string
	)

	command := &cobra.Command{
		Use:   "next <user>",
		Short: "Select the next question for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.SelectRequest{UserID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("target") {
				req.TargetProbability = &target
			}
			if flags.Changed("exclude") {
				req.ExcludeLastN = &exclude
			}
			if flags.Changed("allow") {
				req.Restriction = append([]string{}, allow...)
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				selection, err := app.Service.SelectNext(ctx, req)
				if err != nil {
					return err
				}
				if selection == nil {
					return errNoCandidates
				}
				return printJSON(cmd.OutOrStdout(), dto.NewNextQuestionResponse(selection))
			})
		},
	}

	flags := command.Flags()
	flags.Float64Var(&target, "target", 0, "Target probability of a correct answer, in (0,1)")
	flags.IntVar(&exclude, "exclude", 0, "Number of most recent questions to avoid")
	flags.StringSliceVar(&allow, "allow", nil, "Restrict selection to these question ids")

	return command
}

func newRecordCommand() *cobra.Command {
	var (
		correct        bool
		responseTimeMs int64
	)

	command := &cobra.Command{
		Use:   "record <user> <question>",
		Short: "Record an answer outcome and print the updated ratings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.OutcomeRequest{UserID: args[0], QuestionID: args[1], IsCorrect: correct}
			if cmd.Flags().Changed("response-time-ms") {
				req.ResponseTimeMs = &responseTimeMs
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				result, err := app.Service.RecordOutcome(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewRecordAnswerResponse(result))
			})
		},
	}

	flags := command.Flags()
	flags.BoolVar(&correct, "correct", false, "The answer was correct")
	flags.Int64Var(&responseTimeMs, "response-time-ms", 0, "Time taken to answer, in milliseconds")

	return command
}

func newHistoryCommand() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "history <user>",
		Short: "Print a user's most recent interactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				interactions, err := app.Service.RecentInteractions(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewHistoryResponse(args[0], interactions))
			})
		},
	}

	command.Flags().IntVar(&limit, "limit", 0, "Maximum number of interactions (default 20)")
	return command
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Print answered and correct counts with the current skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				stats, err := app.Service.UserStats(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to read stats: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), dto.NewUserStatsResponse(stats))
			})
		},
	}
}
