package analyzer

import (
	"context"
	"time"

	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

// AgentMode selects how analysis calls obtain an agent
type AgentMode string

const (
	// AgentShared reuses the instance agent owned by Lifecycle.
	AgentShared AgentMode = "shared"
	// AgentPerCall creates and deletes a private agent around every call.
	AgentPerCall AgentMode = "per_call"
)

// Options tune a single Analyzer
type Options struct {
	Mode           AgentMode
	PollInterval   time.Duration
	MaxPolls       int
	RunTimeout     time.Duration
	CleanupTimeout time.Duration
	DeleteThreads  bool
}

// Analyzer turns one document into the agent's JSON reply
type Analyzer struct {
	agents  *Lifecycle
	files   *FileHandler
	driver  *Driver
	journal Journal
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// New builds an Analyzer. journal may be nil.
func New(backend Backend, agents *Lifecycle, journal Journal, opts Options, logger *zap.Logger) *Analyzer {
	if opts.Mode == "" {
		opts.Mode = AgentShared
	}
	return &Analyzer{
		agents:  agents,
		files:   NewFileHandler(backend, opts.CleanupTimeout, logger),
		driver:  NewDriver(backend, opts.PollInterval, opts.MaxPolls, opts.CleanupTimeout),
		journal: journal,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		newID:   NewInstanceID,
	}
}

// Analyze uploads the document, runs the agent over it and returns the last
// agent text. The uploaded file is deleted on every return path. A result
// with Found == false means the run ended without any agent text.
func (a *Analyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (result *models.AnalysisResult, err error) {
	callID := a.newID()
	log := a.logger.With(zap.String("call_id", callID), zap.String("instance_id", a.agents.InstanceID()))
	rec := &models.AnalysisRecord{
		CallID:       callID,
		InstanceID:   a.agents.InstanceID(),
		MimeType:     req.MimeType,
		DocumentSize: int64(len(req.Document)),
		StartedAt:    a.now().UTC(),
	}
	log.Info("Starting analysis", zap.String("mime_type", req.MimeType), zap.Int("document_bytes", len(req.Document)))

	defer func() {
		switch {
		case err == nil:
		case KindOf(err) == KindCanceled:
			log.Warn("Analysis canceled by caller", zap.Error(err))
			err = withCall(err, callID)
		default:
			log.Error("Analysis failed", zap.Error(err))
			err = withCall(err, callID)
		}
		a.record(ctx, log, rec, result, err)
	}()

	if a.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.RunTimeout)
		defer cancel()
	}

	file, err := a.files.Upload(ctx, req.Document, DocumentFilename(callID, req.MimeType), models.PurposeAgentInput)
	if err != nil {
		return nil, err
	}
	rec.FileID = file.ID
	log.Info("Uploaded file", zap.String("file_id", file.ID), zap.String("filename", file.Filename))
	defer a.files.Delete(ctx, file, log)

	agent, err := a.acquireAgent(ctx, callID, log)
	if err != nil {
		return nil, err
	}
	rec.AgentID = agent.ID
	if a.opts.Mode == AgentPerCall {
		defer a.agents.Delete(ctx, agent)
	}

	thread, err := a.driver.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	rec.ThreadID = thread.ID
	if a.opts.DeleteThreads {
		defer a.driver.DeleteThread(ctx, thread.ID, log)
	}

	if _, err = a.driver.PostDocument(ctx, thread.ID, file.ID, req); err != nil {
		return nil, err
	}
	log.Info("Created message with attachment", zap.String("thread_id", thread.ID))

	run, err := a.driver.StartRun(ctx, thread.ID, agent.ID)
	if err != nil {
		return nil, err
	}
	rec.RunID = run.ID
	rec.RunStatus = run.Status
	log.Info("Started run", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))

	run, polls, err := a.driver.PollUntilTerminal(ctx, run, log)
	rec.RunStatus = run.Status
	if err != nil {
		if k := KindOf(err); k == KindTimeout || k == KindCanceled {
			a.driver.CancelRun(ctx, run, log)
		}
		return nil, err
	}
	log.Info("Run finished", zap.String("run_id", run.ID), zap.String("status", string(run.Status)), zap.Int("polls", polls))

	text, found, err := a.driver.ExtractResult(ctx, thread.ID, log)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Warn("Run produced no agent text", zap.String("status", string(run.Status)))
	}
	log.Info("Analysis completed", zap.Bool("found", found), zap.Int("result_bytes", len(text)))

	return &models.AnalysisResult{
		CallID:    callID,
		Text:      text,
		Found:     found,
		RunStatus: run.Status,
	}, nil
}

// acquireAgent returns an agent that has the inspection tool enabled.
// Per-call agents are owned by the caller, which must delete them.
func (a *Analyzer) acquireAgent(ctx context.Context, callID string, log *zap.Logger) (models.AgentHandle, error) {
	if a.opts.Mode == AgentPerCall {
		agent, err := a.agents.NewEphemeral(ctx, callID, models.ToolDocumentInspection)
		if err != nil {
			return models.AgentHandle{}, err
		}
		log.Info("Created call agent", zap.String("agent_id", agent.ID), zap.String("agent_name", agent.Name))
		return agent, nil
	}
	agent, err := a.agents.EnsureTools(ctx, models.ToolDocumentInspection)
	if err != nil {
		return models.AgentHandle{}, err
	}
	log.Info("Agent ready", zap.String("agent_id", agent.ID), zap.Any("tools", agent.Tools))
	return agent, nil
}

func (a *Analyzer) record(ctx context.Context, log *zap.Logger, rec *models.AnalysisRecord, result *models.AnalysisResult, err error) {
	finished := a.now().UTC()
	rec.FinishedAt = &finished
	switch {
	case err == nil && result != nil && result.Found:
		rec.Outcome = models.OutcomeSucceeded
	case err == nil:
		rec.Outcome = models.OutcomeEmpty
	case KindOf(err) == KindTimeout:
		rec.Outcome = models.OutcomeTimedOut
		rec.Error = err.Error()
	case KindOf(err) == KindCanceled:
		rec.Outcome = models.OutcomeCanceled
		rec.Error = err.Error()
	default:
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
	}

	if a.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if jerr := a.journal.SaveAnalysis(ctx, rec); jerr != nil {
		log.Warn("Failed to save analysis record", zap.Error(jerr))
	}
}
