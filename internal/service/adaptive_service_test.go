package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"quizierra/internal/config"
	"quizierra/internal/database"
	"quizierra/internal/domain"
	"quizierra/internal/logger"
	"quizierra/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "error"}); err != nil {
		panic("Failed to initialize logger for tests: " + err.Error())
	}
	code := m.Run()
	_ = logger.Sync()
	os.Exit(code)
}

type testEnv struct {
	svc  AdaptiveService
	repo domain.AdaptiveRepository
	cfg  *config.Config
}

type envOption func(env *envSetup)

type envSetup struct {
	cfg   *config.Config
	cache domain.Cache
	wrap  func(domain.AdaptiveRepository) domain.AdaptiveRepository
}

func withCache(c domain.Cache) envOption {
	return func(env *envSetup) { env.cache = c }
}

func withRepository(wrap func(domain.AdaptiveRepository) domain.AdaptiveRepository) envOption {
	return func(env *envSetup) { env.wrap = wrap }
}

func withConfig(mutate func(cfg *config.Config)) envOption {
	return func(env *envSetup) { mutate(env.cfg) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	setup := &envSetup{cfg: config.Default()}
	setup.cfg.Database.DSN = filepath.Join(t.TempDir(), "engine.db")
	setup.cfg.Adaptive.RetryDelay = time.Millisecond
	for _, opt := range opts {
		opt(setup)
	}

	db, err := database.Open(context.Background(), setup.cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	repo := repository.NewAdaptiveRepository(db)
	if setup.wrap != nil {
		repo = setup.wrap(repo)
	}

	svc, err := NewAdaptiveService(repo, repository.NewTransactionManagerAdapter(db), setup.cache, setup.cfg)
	require.NoError(t, err)
	return &testEnv{svc: svc, repo: repo, cfg: setup.cfg}
}

func (env *testEnv) addQuestion(t *testing.T, id string, difficulty float64) {
	t.Helper()
	_, err := env.svc.EnsureQuestion(context.Background(), domain.QuestionInput{ID: id, Text: "Question " + id, InitialDifficulty: &difficulty})
	require.NoError(t, err)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestAdaptiveService_GetOrCreateSkill(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *config.Config) { cfg.Adaptive.DefaultSkill = 0.25 }))
	ctx := context.Background()

	skill, err := env.svc.GetOrCreateSkill(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0.25, skill)

	record, err := env.repo.GetUserSkill(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, record, "first access creates the record")

	again, err := env.svc.GetOrCreateSkill(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, skill, again)

	_, err = env.svc.GetOrCreateSkill(ctx, "")
	assert.True(t, domain.IsInvalidInput(err))
}

func TestAdaptiveService_SelectNext_TargetSeeking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addQuestion(t, "q-low", difficultyFor(0.2))
	env.addQuestion(t, "q-mid", difficultyFor(0.65))
	env.addQuestion(t, "q-high", difficultyFor(0.95))

	sel, err := env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", TargetProbability: floatPtr(0.7)})
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "q-mid", sel.QuestionID)
	assert.InDelta(t, 0.65, sel.PredictedProbability, 1e-9)
	assert.Equal(t, 0.0, sel.UserSkill)
	assert.Equal(t, "Question q-mid", sel.Text)
	// d = -logit(0.65) is about -0.62, below the medium band.
	assert.Equal(t, domain.DifficultyEasy, sel.DifficultyLabel)
	assert.False(t, sel.FellBack)

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", TargetProbability: floatPtr(0.1)})
	require.NoError(t, err)
	assert.Equal(t, "q-low", sel.QuestionID)

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", Restriction: []string{"q-high", "q-low"}})
	require.NoError(t, err)
	assert.Equal(t, "q-high", sel.QuestionID, "default target is 0.7")
}

func TestAdaptiveService_SelectNext_TieBreak(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"q3", "q1", "q2"} {
		env.addQuestion(t, id, 0.5)
	}

	for i := 0; i < 3; i++ {
		sel, err := env.svc.SelectNext(context.Background(), domain.SelectRequest{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "q1", sel.QuestionID)
	}
}

func TestAdaptiveService_SelectNext_RecencyExclusion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addQuestion(t, "near", difficultyFor(0.7))
	env.addQuestion(t, "far", 3)

	_, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "near", IsCorrect: true})
	require.NoError(t, err)

	sel, err := env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "far", sel.QuestionID)
	assert.False(t, sel.FellBack)

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", ExcludeLastN: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, "near", sel.QuestionID, "window of zero disables exclusion")

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "near", sel.QuestionID, "history is per user")
}

func TestAdaptiveService_SelectNext_FallbackWhenAllRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addQuestion(t, "a", -1)
	env.addQuestion(t, "b", 1)
	for _, qid := range []string{"a", "b"} {
		_, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: qid, IsCorrect: false})
		require.NoError(t, err)
	}

	sel, err := env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, sel, "recency exclusion must not starve the pool")
	assert.True(t, sel.FellBack)

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", Restriction: []string{"b"}})
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "b", sel.QuestionID)
	assert.True(t, sel.FellBack)
}

func TestAdaptiveService_SelectNext_NoCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sel, err := env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, sel, "empty bank")

	env.addQuestion(t, "q1", 0)

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", Restriction: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Nil(t, sel, "restriction disjoint from the bank")

	sel, err = env.svc.SelectNext(ctx, domain.SelectRequest{UserID: "u1", Restriction: []string{}})
	require.NoError(t, err)
	assert.Nil(t, sel, "empty restriction allows nothing")
}

func TestAdaptiveService_SelectNext_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []domain.SelectRequest{
		{UserID: ""},
		{UserID: "u1", TargetProbability: floatPtr(0)},
		{UserID: "u1", TargetProbability: floatPtr(1)},
		{UserID: "u1", TargetProbability: floatPtr(math.NaN())},
		{UserID: "u1", ExcludeLastN: intPtr(-1)},
		{UserID: "u1", Restriction: []string{""}},
	}
	for i, req := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			sel, err := env.svc.SelectNext(ctx, req)
			assert.Nil(t, sel)
			assert.True(t, domain.IsInvalidInput(err))

			var fieldErrs domain.ValidationErrors
			assert.ErrorAs(t, err, &fieldErrs)
		})
	}

	record, err := env.repo.GetUserSkill(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, record, "rejected requests never touch storage")
}

func TestAdaptiveService_RecordOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	latency := int64(4200)

	res, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "fresh", IsCorrect: true, ResponseTimeMs: &latency})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.SkillBefore)
	assert.InDelta(t, 0.15, res.SkillAfter, 1e-12)
	assert.Equal(t, 0.0, res.DifficultyBefore, "unknown questions start at the default difficulty")
	assert.InDelta(t, -0.05, res.DifficultyAfter, 1e-12)
	assert.InDelta(t, 0.5, res.PredictedProbability, 1e-12)
	assert.NotEmpty(t, res.InteractionID)

	skill, err := env.svc.GetOrCreateSkill(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.15, skill, 1e-12)

	q, err := env.svc.GetQuestion(ctx, "fresh")
	require.NoError(t, err)
	assert.InDelta(t, -0.05, q.Difficulty, 1e-12)

	history, err := env.svc.RecentInteractions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.InteractionID, history[0].ID)
	assert.True(t, history[0].IsCorrect)
	assert.Equal(t, 0.0, history[0].SkillBefore)
	assert.InDelta(t, 0.5, history[0].PredictedProbability, 1e-12)
	require.NotNil(t, history[0].ResponseTimeMs)
	assert.Equal(t, latency, *history[0].ResponseTimeMs)

	res, err = env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "fresh", IsCorrect: false})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, res.SkillBefore, 1e-12)
	assert.Less(t, res.SkillAfter, res.SkillBefore)
	assert.Greater(t, res.DifficultyAfter, res.DifficultyBefore)

	stats, err := env.svc.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Answered)
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, res.SkillAfter, stats.Skill)
	assert.NotNil(t, stats.LastAnsweredAt)
}

func TestAdaptiveService_RecordOutcome_FixedDifficulty(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *config.Config) { cfg.Adaptive.AdjustQuestionDifficulty = false }))
	ctx := context.Background()
	env.addQuestion(t, "q1", 1)

	res, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "q1", IsCorrect: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.DifficultyAfter)
	assert.Greater(t, res.SkillAfter, 0.0)

	q, err := env.svc.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.Difficulty)
	assert.Equal(t, int64(0), q.Version)
}

func TestAdaptiveService_RecordOutcome_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RecordOutcome(context.Background(), domain.OutcomeRequest{UserID: "u1"})
	assert.True(t, domain.IsInvalidInput(err))

	q, err := env.repo.GetQuestion(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestAdaptiveService_ConcurrentUsersAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		env.addQuestion(t, fmt.Sprintf("q%d", i), 0)
	}

	const users = 8
	var g errgroup.Group
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		correct := u%2 == 0
		g.Go(func() error {
			_, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: userID, QuestionID: "q0", IsCorrect: correct})
			return err
		})
	}
	require.NoError(t, g.Wait())

	for u := 0; u < users; u++ {
		skill, err := env.svc.GetOrCreateSkill(ctx, fmt.Sprintf("user-%d", u))
		require.NoError(t, err)
		if u%2 == 0 {
			assert.Greater(t, skill, 0.0)
		} else {
			assert.Less(t, skill, 0.0)
		}
		// One answer from the default skill; drift of the shared question only nudges p.
		assert.InDelta(t, 0.15, math.Abs(skill), 0.05)
	}

	q, err := env.svc.GetQuestion(ctx, "q0")
	require.NoError(t, err)
	assert.Equal(t, int64(users), q.Version, "every outcome moved the shared question once")
}

func TestAdaptiveService_ConcurrentOutcomesForSameUserAreAllApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const answers = 12
	for i := 0; i < answers; i++ {
		env.addQuestion(t, fmt.Sprintf("q%02d", i), 0)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < answers; i++ {
		qid := fmt.Sprintf("q%02d", i)
		g.Go(func() error {
			_, err := env.svc.RecordOutcome(gctx, domain.OutcomeRequest{UserID: "same", QuestionID: qid, IsCorrect: true})
			return err
		})
	}
	require.NoError(t, g.Wait())

	// Every question starts at difficulty 0 and is answered once, so the sequential result
	// does not depend on the order in which the goroutines ran.
	model, err := domain.NewSkillModel(env.cfg.Adaptive.ModelParams())
	require.NoError(t, err)
	expected := 0.0
	for i := 0; i < answers; i++ {
		expected = model.ApplyOutcome(expected, 0, true).Skill
	}

	skill, err := env.svc.GetOrCreateSkill(ctx, "same")
	require.NoError(t, err)
	assert.InDelta(t, expected, skill, 1e-9)

	record, err := env.repo.GetUserSkill(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, int64(answers), record.Version)

	history, err := env.svc.RecentInteractions(ctx, "same", 100)
	require.NoError(t, err)
	assert.Len(t, history, answers)
}

func TestAdaptiveService_RecordOutcome_RetriesWriteConflicts(t *testing.T) {
	faulty := &faultyRepository{skillUpdateErrs: []error{domain.ErrConflict, domain.ErrConflict}}
	env := newTestEnv(t, withRepository(func(repo domain.AdaptiveRepository) domain.AdaptiveRepository {
		faulty.AdaptiveRepository = repo
		return faulty
	}))
	ctx := context.Background()

	res, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "q1", IsCorrect: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, res.SkillAfter, 1e-12)
	assert.Equal(t, 3, faulty.skillUpdates)

	history, err := env.svc.RecentInteractions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed attempts leave no trace")
}

func TestAdaptiveService_RecordOutcome_ConflictRetriesExhausted(t *testing.T) {
	faulty := &faultyRepository{}
	env := newTestEnv(t,
		withConfig(func(cfg *config.Config) { cfg.Adaptive.MaxRetries = 2 }),
		withRepository(func(repo domain.AdaptiveRepository) domain.AdaptiveRepository {
			faulty.AdaptiveRepository = repo
			return faulty
		}),
	)
	faulty.skillUpdateErrs = []error{domain.ErrConflict, domain.ErrConflict, domain.ErrConflict, domain.ErrConflict}
	ctx := context.Background()

	_, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "q1", IsCorrect: true})
	require.Error(t, err)
	assert.Equal(t, domain.ErrWriteConflict, domain.CodeOf(err))
	assert.True(t, domain.IsStorageFailure(err))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, faulty.skillUpdates)

	answered, _, _, err := env.repo.InteractionStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, answered)
}

func TestAdaptiveService_RecordOutcome_StorageFailureRollsBack(t *testing.T) {
	diskErr := errors.New("disk I/O error")
	faulty := &faultyRepository{appendErr: diskErr}
	env := newTestEnv(t, withRepository(func(repo domain.AdaptiveRepository) domain.AdaptiveRepository {
		faulty.AdaptiveRepository = repo
		return faulty
	}))
	ctx := context.Background()
	env.addQuestion(t, "q1", 0)
	_, err := env.svc.GetOrCreateSkill(ctx, "u1")
	require.NoError(t, err)

	_, err = env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "q1", IsCorrect: true})
	require.Error(t, err)
	assert.Equal(t, domain.ErrStorageFailure, domain.CodeOf(err))
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, 1, faulty.skillUpdates, "non-transient failures are not retried")

	record, err := env.repo.GetUserSkill(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, record.Skill, "skill update rolled back with the failed append")
	assert.Equal(t, int64(0), record.Version)

	q, err := env.repo.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Difficulty)
}

func TestAdaptiveService_EnsureQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hard, _ := domain.DifficultyFromLabel(domain.DifficultyHard)
	d, err := env.svc.EnsureQuestion(ctx, domain.QuestionInput{
		ID:                "q1",
		Text:              "Explain goroutines",
		InitialDifficulty: &hard,
		Metadata:          domain.QuestionMetadata{Topic: "go", Answer: "lightweight threads"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	d, err = env.svc.EnsureQuestion(ctx, domain.QuestionInput{ID: "q1", Text: "changed", InitialDifficulty: floatPtr(-3)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d, "existing difficulty is returned unchanged")

	q, err := env.svc.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "Explain goroutines", q.Text)
	assert.Equal(t, "go", q.Metadata.Topic)

	d, err = env.svc.EnsureQuestion(ctx, domain.QuestionInput{ID: "q-extreme", InitialDifficulty: floatPtr(42)})
	require.NoError(t, err)
	assert.Equal(t, env.cfg.Adaptive.DifficultyMax, d)

	d, err = env.svc.EnsureQuestion(ctx, domain.QuestionInput{ID: "q-default"})
	require.NoError(t, err)
	assert.Equal(t, env.cfg.Adaptive.DefaultDifficulty, d)

	_, err = env.svc.EnsureQuestion(ctx, domain.QuestionInput{ID: " "})
	assert.True(t, domain.IsInvalidInput(err))
}

func TestAdaptiveService_GetQuestionNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetQuestion(context.Background(), "missing")
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestAdaptiveService_RecentInteractionsLimit(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RecentInteractions(context.Background(), "u1", MaxHistoryLimit+1)
	assert.True(t, domain.IsInvalidInput(err))

	history, err := env.svc.RecentInteractions(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAdaptiveService_SkillCache(t *testing.T) {
	ctx := context.Background()
	key := skillCacheKey("u1")

	t.Run("hit skips storage", func(t *testing.T) {
		mockCache := new(MockCache)
		env := newTestEnv(t, withCache(mockCache))
		mockCache.On("Get", mock.Anything, key).Return("1.75", nil).Once()

		skill, err := env.svc.GetOrCreateSkill(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1.75, skill)

		record, err := env.repo.GetUserSkill(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, record)
		mockCache.AssertExpectations(t)
	})

	t.Run("miss loads and populates", func(t *testing.T) {
		mockCache := new(MockCache)
		env := newTestEnv(t, withCache(mockCache))
		mockCache.On("Get", mock.Anything, key).Return("", domain.ErrCacheMiss).Once()
		mockCache.On("Set", mock.Anything, key, "0", env.cfg.Redis.SkillTTL).Return(nil).Once()

		skill, err := env.svc.GetOrCreateSkill(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, skill)
		mockCache.AssertExpectations(t)
	})

	t.Run("outcome refreshes the cached skill", func(t *testing.T) {
		mockCache := new(MockCache)
		env := newTestEnv(t, withCache(mockCache))
		mockCache.On("Set", mock.Anything, key, "0.15", env.cfg.Redis.SkillTTL).Return(nil).Once()

		_, err := env.svc.RecordOutcome(ctx, domain.OutcomeRequest{UserID: "u1", QuestionID: "q1", IsCorrect: true})
		require.NoError(t, err)
		mockCache.AssertExpectations(t)
	})

	t.Run("cache failures are not fatal", func(t *testing.T) {
		mockCache := new(MockCache)
		env := newTestEnv(t, withCache(mockCache))
		redisDown := errors.New("connection refused")
		mockCache.On("Get", mock.Anything, key).Return("", redisDown).Once()
		mockCache.On("Set", mock.Anything, key, "0", env.cfg.Redis.SkillTTL).Return(redisDown).Once()
		mockCache.On("Delete", mock.Anything, key).Return(redisDown).Once()

		skill, err := env.svc.GetOrCreateSkill(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, skill)
		mockCache.AssertExpectations(t)
	})

	t.Run("malformed entries are discarded", func(t *testing.T) {
		mockCache := new(MockCache)
		env := newTestEnv(t, withCache(mockCache))
		mockCache.On("Get", mock.Anything, key).Return("not-a-number", nil).Once()
		mockCache.On("Delete", mock.Anything, key).Return(nil).Once()
		mockCache.On("Set", mock.Anything, key, "0", env.cfg.Redis.SkillTTL).Return(nil).Once()

		skill, err := env.svc.GetOrCreateSkill(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, skill)
		mockCache.AssertExpectations(t)
	})
}

func TestAdaptiveService_SharedSkillLoadIgnoresCallerCancellation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc.(*adaptiveService)

	// Hold the user's lock so the shared load blocks until both callers are waiting on it.
	unlock := svc.locks.Lock("u1")
	defer unlock()

	cancelled, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		skill float64
		err   error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		skill, err := env.svc.GetOrCreateSkill(cancelled, "u1")
		first <- result{skill, err}
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		skill, err := env.svc.GetOrCreateSkill(context.Background(), "u1")
		second <- result{skill, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case res := <-first:
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	unlock()
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, 0.0, res.skill)
	case <-time.After(5 * time.Second):
		t.Fatal("live caller never received the shared load")
	}

	record, err := env.repo.GetUserSkill(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestNewAdaptiveService_InvalidModel(t *testing.T) {
	cfg := config.Default()
	cfg.Adaptive.KQuestion = cfg.Adaptive.KUser * 2
	_, err := NewAdaptiveService(nil, nil, nil, cfg)
	assert.Error(t, err)
}
