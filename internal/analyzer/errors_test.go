package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

func TestError_Message(t *testing.T) {
	err := BackendError("create run", errors.New("503 service unavailable"))
	assert.Equal(t, "backend error during create run: 503 service unavailable", err.Error())

	stamped := withCall(err, "c1")
	assert.Equal(t, "c1: backend error during create run: 503 service unavailable", stamped.Error())
	assert.Empty(t, err.CallID)
}

func TestBackendError_Classification(t *testing.T) {
	notFound := BackendError("get run", fmt.Errorf("run_1: %w", ErrNotFound))
	assert.True(t, notFound.NotFound)
	assert.Equal(t, KindBackend, notFound.Kind)
	assert.ErrorIs(t, notFound, ErrNotFound)

	timeout := BackendError("get run", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, timeout.Kind)

	cancelled := BackendError("get run", fmt.Errorf("post: %w", context.Canceled))
	assert.Equal(t, KindCanceled, cancelled.Kind)
	assert.Equal(t, "canceled error during get run: post: context canceled", cancelled.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindConfiguration, KindOf(fmt.Errorf("wrapped: %w", ConfigurationError("load prompt", nil))))
	assert.False(t, IsNotFound(errors.New("plain")))

	foreign := withCall(errors.New("plain"), "c2")
	assert.Equal(t, KindUnknown, KindOf(foreign))
	assert.Equal(t, "c2: unknown error: plain", foreign.Error())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestReadRetry(t *testing.T) {
	t.Run("transient get run is retried once", func(t *testing.T) {
		fb := newFakeBackend()
		fb.Fail["get_run"] = fmt.Errorf("502: %w", ErrTransient)
		b := WithReadRetry(fb, time.Millisecond, zap.NewNop())

		_, err := b.GetRun(context.Background(), "t", "r")
		require.Error(t, err)
		assert.Equal(t, 2, fb.Calls("get_run"))
	})

	t.Run("network timeout on list is retried once", func(t *testing.T) {
		fb := newFakeBackend()
		fb.Fail["list_messages"] = timeoutErr{}
		b := WithReadRetry(fb, time.Millisecond, zap.NewNop())

		_, err := b.ListMessages(context.Background(), "t", models.Ascending)
		require.Error(t, err)
		assert.Equal(t, 2, fb.Calls("list_messages"))
	})

	t.Run("not found is not retried", func(t *testing.T) {
		fb := newFakeBackend()
		fb.Fail["get_run"] = ErrNotFound
		b := WithReadRetry(fb, time.Millisecond, zap.NewNop())

		_, err := b.GetRun(context.Background(), "t", "r")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, fb.Calls("get_run"))
	})

	t.Run("create run is never retried", func(t *testing.T) {
		fb := newFakeBackend()
		fb.Fail["create_run"] = ErrTransient
		b := WithReadRetry(fb, time.Millisecond, zap.NewNop())

		_, err := b.CreateRun(context.Background(), "t", "a")
		require.Error(t, err)
		assert.Equal(t, 1, fb.Calls("create_run"))
	})

	t.Run("cancelled context stops the wait", func(t *testing.T) {
		fb := newFakeBackend()
		fb.Fail["get_run"] = ErrTransient
		b := WithReadRetry(fb, time.Hour, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.GetRun(ctx, "t", "r")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, fb.Calls("get_run"))
	})
}
