package analyzer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

const readRetryDelay = 300 * time.Millisecond

// retryingBackend retries the idempotent reads once. Calls that create or
// mutate remote state pass straight through, so a run is never created twice.
type retryingBackend struct {
	Backend
	delay  time.Duration
	logger *zap.Logger
}

// WithReadRetry wraps b so that GetRun and ListMessages survive one transient failure
func WithReadRetry(b Backend, delay time.Duration, logger *zap.Logger) Backend {
	if b == nil {
		return nil
	}
	if delay <= 0 {
		delay = readRetryDelay
	}
	return &retryingBackend{Backend: b, delay: delay, logger: logger}
}

func (r *retryingBackend) GetRun(ctx context.Context, threadID, runID string) (models.Run, error) {
	run, err := r.Backend.GetRun(ctx, threadID, runID)
	if err == nil || !shouldRetry(err) {
		return run, err
	}
	if werr := r.wait(ctx, "get run", err); werr != nil {
		return models.Run{}, werr
	}
	return r.Backend.GetRun(ctx, threadID, runID)
}

func (r *retryingBackend) ListMessages(ctx context.Context, threadID string, order models.SortOrder) ([]models.Message, error) {
	msgs, err := r.Backend.ListMessages(ctx, threadID, order)
	if err == nil || !shouldRetry(err) {
		return msgs, err
	}
	if werr := r.wait(ctx, "list messages", err); werr != nil {
		return nil, werr
	}
	return r.Backend.ListMessages(ctx, threadID, order)
}

func (r *retryingBackend) wait(ctx context.Context, op string, cause error) error {
	r.logger.Warn("Retrying backend read", zap.String("op", op), zap.Error(cause))
	select {
	case <-time.After(r.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
