package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sewabaju/internal/jobs"
	"sewabaju/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockOverdueNotifier struct {
	mock.Mock
}

func (m *MockOverdueNotifier) NotifyOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func staffContext() interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		actor, ok := session.FromContext(ctx)
		return ok && actor.IsStaff()
	})
}

func TestScheduler_ScanOverdueRunsAsStaff(t *testing.T) {
	notifier := new(MockOverdueNotifier)
	notifier.On("NotifyOverdue", staffContext()).Return(2, nil).Once()

	s, err := jobs.NewScheduler(notifier, "0 0 7 * * *", time.UTC, zap.NewNop())
	require.NoError(t, err)

	s.ScanOverdue()
	notifier.AssertExpectations(t)
}

func TestScheduler_ScanOverdueErrorIsLogged(t *testing.T) {
	notifier := new(MockOverdueNotifier)
	notifier.On("NotifyOverdue", mock.Anything).Return(0, errors.New("db down")).Once()

	s, err := jobs.NewScheduler(notifier, "@every 1h", nil, zap.NewNop())
	require.NoError(t, err)

	assert.NotPanics(t, s.ScanOverdue)
	notifier.AssertExpectations(t)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	_, err := jobs.NewScheduler(new(MockOverdueNotifier), "not a cron spec", time.UTC, zap.NewNop())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := jobs.NewScheduler(new(MockOverdueNotifier), "0 0 7 * * *", time.UTC, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
