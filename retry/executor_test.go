package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamer-online/gameserver/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func fastExecutor() *Executor {
	return NewExecutor(config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}, zap.NewNop())
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	e := fastExecutor()
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	e := fastExecutor()
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	e := fastExecutor()
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_LogicalErrorNotRetried(t *testing.T) {
	e := fastExecutor()
	calls := 0
	sentinel := errors.New("duplicate trade entry")
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	e := NewExecutor(config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	calls := 0
	err := e.Do(ctx, "op", func() error {
		calls++
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{errors.New("Error 1213: Deadlock found"), true},
		{errors.New("i/o timeout"), true},
		{fmt.Errorf("query: %w", errors.New("sqlite busy")), true},
		{context.DeadlineExceeded, true},
		{gorm.ErrRecordNotFound, false},
		{errors.New("UNIQUE constraint failed"), false},
		{errors.New("invalid amount"), false},
	}
	for _, c := range cases {
		name := "nil"
		if c.err != nil {
			name = c.err.Error()
		}
		assert.Equal(t, c.want, Transient(c.err), name)
	}
}
