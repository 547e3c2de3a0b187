package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

// DefaultPollInterval is the pause between two run status fetches
const DefaultPollInterval = 500 * time.Millisecond

// Driver runs the thread/message/run protocol for one document
type Driver struct {
	backend  Backend
	interval time.Duration
	maxPolls int
	timeout  time.Duration
}

func NewDriver(backend Backend, pollInterval time.Duration, maxPolls int, cleanupTimeout time.Duration) *Driver {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &Driver{
		backend:  backend,
		interval: pollInterval,
		maxPolls: maxPolls,
		timeout:  cleanupTimeout,
	}
}

func (d *Driver) CreateThread(ctx context.Context) (models.Thread, error) {
	thread, err := d.backend.CreateThread(ctx)
	if err != nil {
		return models.Thread{}, BackendError("create thread", err)
	}
	return thread, nil
}

// DeleteThread removes a thread, logging instead of returning failures
func (d *Driver) DeleteThread(ctx context.Context, threadID string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.backend.DeleteThread(ctx, threadID); err != nil {
		logger.Warn("Failed to delete thread", zap.Error(err), zap.String("thread_id", threadID))
		return
	}
	logger.Debug("Deleted thread", zap.String("thread_id", threadID))
}

// PostDocument posts the extraction request with the uploaded file attached.
// The inspection tool is enabled for this attachment only.
func (d *Driver) PostDocument(ctx context.Context, threadID, fileID string, req models.AnalysisRequest) (models.Message, error) {
	msg, err := d.backend.CreateMessage(ctx, threadID, models.MessageRequest{
		Role: models.RoleUser,
		Text: BuildUserMessage(req.MimeType, req.ExpectedSchema, req.UserInstructions),
		Attachments: []models.Attachment{{
			FileID: fileID,
			Tools:  []models.Tool{models.ToolDocumentInspection},
		}},
	})
	if err != nil {
		return models.Message{}, BackendError("create message", err)
	}
	return msg, nil
}

// StartRun asks the agent to process the thread. It is called once per thread.
func (d *Driver) StartRun(ctx context.Context, threadID, agentID string) (models.Run, error) {
	run, err := d.backend.CreateRun(ctx, threadID, agentID)
	if err != nil {
		return models.Run{}, BackendError("create run", err)
	}
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}
	if run.AgentID == "" {
		run.AgentID = agentID
	}
	return run, nil
}

// PollUntilTerminal re-reads the run until it leaves queued/in_progress.
// It always waits one interval before the first fetch. The returned count is
// the number of status fetches issued.
func (d *Driver) PollUntilTerminal(ctx context.Context, run models.Run, logger *zap.Logger) (models.Run, int, error) {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			return run, polls, contextError(ctx, "poll run")
		case <-timer.C:
		}

		polls++
		next, err := d.backend.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, polls, BackendError("get run", err)
		}
		next.ThreadID, next.AgentID = run.ThreadID, run.AgentID
		if next.ID == "" {
			next.ID = run.ID
		}
		run = next
		logger.Debug("Polled run", zap.String("run_id", run.ID), zap.String("status", string(run.Status)), zap.Int("poll", polls))

		if !run.Status.Pending() {
			return run, polls, nil
		}
		if d.maxPolls > 0 && polls >= d.maxPolls {
			return run, polls, TimeoutError("poll run", fmt.Errorf("run still %s after %d polls", run.Status, polls))
		}
		timer.Reset(d.interval)
	}
}

// CancelRun asks the backend to stop an abandoned run
func (d *Driver) CancelRun(ctx context.Context, run models.Run, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if _, err := d.backend.CancelRun(ctx, run.ThreadID, run.ID); err != nil {
		logger.Warn("Failed to cancel run", zap.Error(err), zap.String("run_id", run.ID))
		return
	}
	logger.Info("Cancelled run", zap.String("run_id", run.ID))
}

// ExtractResult lists the transcript oldest first and selects the agent's final text
func (d *Driver) ExtractResult(ctx context.Context, threadID string, logger *zap.Logger) (string, bool, error) {
	messages, err := d.backend.ListMessages(ctx, threadID, models.Ascending)
	if err != nil {
		return "", false, BackendError("list messages", err)
	}
	for _, m := range messages {
		logger.Debug("Thread message",
			zap.String("role", string(m.Role)),
			zap.Time("created_at", m.CreatedAt),
			zap.Int("parts", len(m.Content)))
	}
	text, found := SelectResult(messages)
	return text, found, nil
}
