package service

import (
	"context"
	"time"

	"quizierra/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// faultyRepository wraps a real repository and injects failures into selected writes.
type faultyRepository struct {
	domain.AdaptiveRepository

	skillUpdateErrs []error
	appendErr       error
	skillUpdates    int
}

func (r *faultyRepository) UpdateUserSkill(ctx context.Context, userID string, skill float64, expectedVersion int64, at time.Time) error {
	r.skillUpdates++
	if len(r.skillUpdateErrs) > 0 {
		err := r.skillUpdateErrs[0]
		r.skillUpdateErrs = r.skillUpdateErrs[1:]
		if err != nil {
			return err
		}
	}
	return r.AdaptiveRepository.UpdateUserSkill(ctx, userID, skill, expectedVersion, at)
}

func (r *faultyRepository) AppendInteraction(ctx context.Context, in *domain.Interaction) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	return r.AdaptiveRepository.AppendInteraction(ctx, in)
}
