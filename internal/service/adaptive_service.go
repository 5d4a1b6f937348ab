package service

import (
	"context"
	"fmt"
	"time"

	"quizierra/internal/config"
	"quizierra/internal/domain"
	"quizierra/internal/logger"
	"quizierra/internal/repository"
	"quizierra/internal/util"
	"quizierra/internal/validation"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
)

// AdaptiveService is the adaptive engine: it tracks user skill, picks the next question
// and applies answer outcomes.
type AdaptiveService interface {
	// GetOrCreateSkill returns the user's skill, creating the record with the default skill on first use.
	GetOrCreateSkill(ctx context.Context, userID string) (float64, error)
	// SelectNext returns (nil, nil) when no question is available.
	SelectNext(ctx context.Context, req domain.SelectRequest) (*domain.Selection, error)
	RecordOutcome(ctx context.Context, req domain.OutcomeRequest) (*domain.OutcomeResult, error)
	// EnsureQuestion returns the stored difficulty, registering the question if it is new.
	EnsureQuestion(ctx context.Context, in domain.QuestionInput) (float64, error)
	GetQuestion(ctx context.Context, questionID string) (*domain.Question, error)
	RecentInteractions(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error)
	UserStats(ctx context.Context, userID string) (*domain.UserStats, error)
}

// adaptiveService implements AdaptiveService
type adaptiveService struct {
	repo      domain.AdaptiveRepository
	txManager domain.TransactionManager
	cache     *skillCache
	model     *domain.SkillModel
	cfg       config.AdaptiveConfig
	timeout   time.Duration
	validator *validation.Validator
	locks     *UserLocker
	sfGroup   singleflight.Group
	now       func() time.Time
}

// NewAdaptiveService creates the engine. cache may be nil.
func NewAdaptiveService(
	repo domain.AdaptiveRepository,
	txManager domain.TransactionManager,
	cache domain.Cache,
	cfg *config.Config,
) (AdaptiveService, error) {
	model, err := domain.NewSkillModel(cfg.Adaptive.ModelParams())
	if err != nil {
		return nil, fmt.Errorf("invalid skill model configuration: %w", err)
	}
	return &adaptiveService{
		repo:      repo,
		txManager: txManager,
		cache:     newSkillCache(cache, cfg.Redis.SkillTTL),
		model:     model,
		cfg:       cfg.Adaptive,
		timeout:   cfg.Database.QueryTimeout,
		validator: validation.NewValidator(),
		locks:     NewUserLocker(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *adaptiveService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// GetOrCreateSkill implements AdaptiveService
func (s *adaptiveService) GetOrCreateSkill(ctx context.Context, userID string) (float64, error) {
	if errs := s.validator.ValidateUserID(userID); len(errs) > 0 {
		return 0, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	skill, err := s.loadSkill(ctx, userID)
	if err != nil {
		logger.Get().Error("Failed to load user skill", zap.String("user_id", userID), zap.Error(err))
		return 0, domain.NewStorageError("get or create skill", err)
	}
	return skill, nil
}

// loadSkill reads through the cache. Concurrent misses for one user share a single load,
// which runs under the user's lock so it cannot cache a value older than a committed outcome.
// The shared load is detached from any one caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (s *adaptiveService) loadSkill(ctx context.Context, userID string) (float64, error) {
	if skill, ok := s.cache.get(ctx, userID); ok {
		return skill, nil
	}

	ch := s.sfGroup.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		unlock := s.locks.Lock(userID)
		defer unlock()

		record, err := s.ensureSkill(loadCtx, userID, s.now())
		if err != nil {
			return nil, err
		}
		s.cache.set(loadCtx, userID, record.Skill)
		return record.Skill, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return 0, res.Err
	}

	skill, ok := res.Val.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected type from singleflight for user skill: %T", res.Val)
	}
	return skill, nil
}

// ensureSkill reads or lazily creates the skill record.
func (s *adaptiveService) ensureSkill(ctx context.Context, userID string, now time.Time) (*domain.UserSkill, error) {
	existing, err := s.repo.GetUserSkill(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.repo.InsertUserSkillIfAbsent(ctx, &domain.UserSkill{
		UserID:      userID,
		Skill:       s.model.ClampSkill(s.cfg.DefaultSkill),
		LastUpdated: now,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Get().Info("Created user skill record", zap.String("user_id", userID))
	}

	existing, err = s.repo.GetUserSkill(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("user skill for %s missing after insert", userID)
	}
	return existing, nil
}

// ensureQuestion reads or lazily creates the question record. Existing rows are never modified.
func (s *adaptiveService) ensureQuestion(ctx context.Context, in domain.QuestionInput, now time.Time) (*domain.Question, error) {
	existing, err := s.repo.GetQuestion(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	difficulty := s.cfg.DefaultDifficulty
	if in.InitialDifficulty != nil {
		difficulty = *in.InitialDifficulty
	}

	created, err := s.repo.InsertQuestionIfAbsent(ctx, &domain.Question{
		ID:         in.ID,
		Text:       in.Text,
		Difficulty: s.model.ClampDifficulty(difficulty),
		Metadata:   in.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Get().Info("Registered question",
			zap.String("question_id", in.ID),
			zap.Float64("difficulty", s.model.ClampDifficulty(difficulty)),
		)
	}

	existing, err = s.repo.GetQuestion(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("question %s missing after insert", in.ID)
	}
	return existing, nil
}

// SelectNext implements AdaptiveService
func (s *adaptiveService) SelectNext(ctx context.Context, req domain.SelectRequest) (*domain.Selection, error) {
	if errs := s.validator.ValidateSelectRequest(req); len(errs) > 0 {
		return nil, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	target := s.cfg.TargetProbability
	if req.TargetProbability != nil {
		target = *req.TargetProbability
	}
	excludeLastN := s.cfg.ExcludeLastN
	if req.ExcludeLastN != nil {
		excludeLastN = *req.ExcludeLastN
	}

	skill, err := s.loadSkill(ctx, req.UserID)
	if err != nil {
		return nil, s.storageFailure("select next question", req.UserID, err)
	}

	questions, err := s.repo.ListQuestions(ctx, req.Restriction)
	if err != nil {
		return nil, s.storageFailure("select next question", req.UserID, err)
	}
	if len(questions) == 0 {
		logger.Get().Debug("No candidate questions",
			zap.String("user_id", req.UserID),
			zap.Bool("restricted", req.Restriction != nil),
		)
		return nil, nil
	}

	recent, err := s.repo.RecentQuestionIDs(ctx, req.UserID, excludeLastN)
	if err != nil {
		return nil, s.storageFailure("select next question", req.UserID, err)
	}

	candidates, fellBack := excludeRecent(questions, recent)
	if fellBack {
		logger.Get().Warn("All candidate questions were answered recently, ignoring recency window",
			zap.String("user_id", req.UserID),
			zap.Int("candidates", len(questions)),
			zap.Int("exclude_last_n", excludeLastN),
		)
	}

	best, p := pickClosest(s.model, skill, target, candidates)
	if best == nil {
		return nil, nil
	}

	logger.Get().Debug("Selected next question",
		zap.String("user_id", req.UserID),
		zap.String("question_id", best.ID),
		zap.Float64("skill", skill),
		zap.Float64("difficulty", best.Difficulty),
		zap.Float64("predicted_probability", p),
		zap.Float64("target_probability", target),
		zap.Int("candidates", len(candidates)),
	)

	return &domain.Selection{
		QuestionID:           best.ID,
		Text:                 best.Text,
		Difficulty:           best.Difficulty,
		DifficultyLabel:      best.DifficultyLabel(),
		Metadata:             best.Metadata,
		PredictedProbability: p,
		UserSkill:            skill,
		FellBack:             fellBack,
	}, nil
}

// RecordOutcome implements AdaptiveService. The skill update, the difficulty update and the
// interaction append commit together; write conflicts retry the whole transaction.
func (s *adaptiveService) RecordOutcome(ctx context.Context, req domain.OutcomeRequest) (*domain.OutcomeResult, error) {
	if errs := s.validator.ValidateOutcomeRequest(req); len(errs) > 0 {
		return nil, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock := s.locks.Lock(req.UserID)
	defer unlock()

	var (
		result  *domain.OutcomeResult
		lastErr error
	)
	err := retry.Do(
		func() error {
			r, err := s.recordOutcomeOnce(ctx, req)
			if err != nil {
				lastErr = err
				if !repository.IsTransient(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries)+1),
		retry.Delay(s.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Get().Warn("Retrying outcome after write conflict",
				zap.String("user_id", req.UserID),
				zap.String("question_id", req.QuestionID),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if repository.IsTransient(lastErr) {
			logger.Get().Error("Giving up on outcome after repeated write conflicts",
				zap.String("user_id", req.UserID), zap.Error(lastErr))
			return nil, domain.NewWriteConflictError(req.UserID, lastErr)
		}
		return nil, s.storageFailure("record outcome", req.UserID, lastErr)
	}

	s.cache.set(ctx, req.UserID, result.SkillAfter)

	logger.Get().Info("Recorded outcome",
		zap.String("user_id", req.UserID),
		zap.String("question_id", req.QuestionID),
		zap.Bool("is_correct", req.IsCorrect),
		zap.Float64("skill_before", result.SkillBefore),
		zap.Float64("skill_after", result.SkillAfter),
		zap.Float64("difficulty_before", result.DifficultyBefore),
		zap.Float64("difficulty_after", result.DifficultyAfter),
		zap.Float64("predicted_probability", result.PredictedProbability),
	)
	return result, nil
}

func (s *adaptiveService) recordOutcomeOnce(ctx context.Context, req domain.OutcomeRequest) (*domain.OutcomeResult, error) {
	var result *domain.OutcomeResult
	now := s.now()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		skill, err := s.ensureSkill(txCtx, req.UserID, now)
		if err != nil {
			return err
		}
		question, err := s.ensureQuestion(txCtx, domain.QuestionInput{ID: req.QuestionID}, now)
		if err != nil {
			return err
		}

		update := s.model.ApplyOutcome(skill.Skill, question.Difficulty, req.IsCorrect)

		if err := s.repo.UpdateUserSkill(txCtx, req.UserID, update.Skill, skill.Version, now); err != nil {
			return err
		}

		difficultyAfter := question.Difficulty
		if s.cfg.AdjustQuestionDifficulty {
			if err := s.repo.UpdateQuestionDifficulty(txCtx, question.ID, update.Difficulty, question.Version, now); err != nil {
				return err
			}
			difficultyAfter = update.Difficulty
		}

		interaction := &domain.Interaction{
			ID:                   util.NewULID(),
			UserID:               req.UserID,
			QuestionID:           question.ID,
			IsCorrect:            req.IsCorrect,
			ResponseTimeMs:       req.ResponseTimeMs,
			SkillBefore:          skill.Skill,
			DifficultyBefore:     question.Difficulty,
			PredictedProbability: update.Probability,
			CreatedAt:            now,
		}
		if err := s.repo.AppendInteraction(txCtx, interaction); err != nil {
			return err
		}

		result = &domain.OutcomeResult{
			UserID:               req.UserID,
			QuestionID:           question.ID,
			InteractionID:        interaction.ID,
			SkillBefore:          skill.Skill,
			SkillAfter:           update.Skill,
			DifficultyBefore:     question.Difficulty,
			DifficultyAfter:      difficultyAfter,
			PredictedProbability: update.Probability,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureQuestion implements AdaptiveService
func (s *adaptiveService) EnsureQuestion(ctx context.Context, in domain.QuestionInput) (float64, error) {
	if errs := s.validator.ValidateQuestionInput(in); len(errs) > 0 {
		return 0, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := s.ensureQuestion(ctx, in, s.now())
	if err != nil {
		logger.Get().Error("Failed to ensure question", zap.String("question_id", in.ID), zap.Error(err))
		return 0, domain.NewStorageError("ensure question", err)
	}
	return q.Difficulty, nil
}

// GetQuestion implements AdaptiveService
func (s *adaptiveService) GetQuestion(ctx context.Context, questionID string) (*domain.Question, error) {
	if errs := s.validator.ValidateQuestionID(questionID); len(errs) > 0 {
		return nil, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, domain.NewStorageError("get question", err)
	}
	if q == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Question %s not found", questionID))
	}
	return q, nil
}

// RecentInteractions implements AdaptiveService. A non-positive limit selects the default.
func (s *adaptiveService) RecentInteractions(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error) {
	errs := s.validator.ValidateUserID(userID)
	if limit > MaxHistoryLimit {
		errs = append(errs, domain.NewOutOfRangeError("limit", limit, 1, MaxHistoryLimit))
	}
	if len(errs) > 0 {
		return nil, domain.NewValidationFailedError(errs)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	interactions, err := s.repo.RecentInteractions(ctx, userID, limit)
	if err != nil {
		return nil, s.storageFailure("read interaction history", userID, err)
	}
	return interactions, nil
}

// UserStats implements AdaptiveService
func (s *adaptiveService) UserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	if errs := s.validator.ValidateUserID(userID); len(errs) > 0 {
		return nil, domain.NewValidationFailedError(errs)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	skill, err := s.loadSkill(ctx, userID)
	if err != nil {
		return nil, s.storageFailure("read user stats", userID, err)
	}
	answered, correct, lastAt, err := s.repo.InteractionStats(ctx, userID)
	if err != nil {
		return nil, s.storageFailure("read user stats", userID, err)
	}
	return &domain.UserStats{
		UserID:         userID,
		Skill:          skill,
		Answered:       answered,
		Correct:        correct,
		LastAnsweredAt: lastAt,
	}, nil
}

func (s *adaptiveService) storageFailure(operation, userID string, err error) error {
	logger.Get().Error("Storage failure",
		zap.String("operation", operation),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return domain.NewStorageError(operation, err)
}
