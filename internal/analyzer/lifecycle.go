package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

// AgentNamePrefix starts the name of every agent this service creates
const AgentNamePrefix = "document-agent-"

// NewInstanceID returns a short random identifier for a service instance or call
func NewInstanceID() string {
	return uuid.NewString()[:8]
}

// Lifecycle owns the extraction agent of one service instance.
// The tool set is the only field mutated after Initialize and every mutation holds mu.
type Lifecycle struct {
	backend    Backend
	logger     *zap.Logger
	instanceID string
	timeout    time.Duration

	mu     sync.Mutex
	spec   *models.AgentSpec
	handle *models.AgentHandle
}

func NewLifecycle(backend Backend, instanceID string, logger *zap.Logger) *Lifecycle {
	if instanceID == "" {
		instanceID = NewInstanceID()
	}
	return &Lifecycle{
		backend:    backend,
		logger:     logger.With(zap.String("instance_id", instanceID)),
		instanceID: instanceID,
		timeout:    30 * time.Second,
	}
}

func (l *Lifecycle) InstanceID() string {
	return l.instanceID
}

func (l *Lifecycle) AgentName() string {
	return AgentNamePrefix + l.instanceID
}

// Prepare loads the system prompt and records the agent spec without creating anything remotely
func (l *Lifecycle) Prepare(model, promptPath string) error {
	if model == "" {
		return ConfigurationError("prepare agent", errors.New("model or deployment name is required"))
	}
	instructions, err := LoadPrompt(promptPath)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.spec = &models.AgentSpec{
		Name:         l.AgentName(),
		Model:        model,
		Instructions: instructions,
		Temperature:  0,
	}
	return nil
}

// Initialize creates the long-lived agent with deterministic decoding
func (l *Lifecycle) Initialize(ctx context.Context, model, promptPath string) (models.AgentHandle, error) {
	if err := l.Prepare(model, promptPath); err != nil {
		return models.AgentHandle{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle != nil {
		return models.AgentHandle{}, ConfigurationError("initialize agent", errors.New("agent already initialized"))
	}

	handle, err := l.backend.CreateAgent(ctx, *l.spec)
	if err != nil {
		l.logger.Error("Failed to create agent", zap.Error(err), zap.String("model", model))
		return models.AgentHandle{}, BackendError("create agent", err)
	}
	l.handle = &handle
	l.logger.Info("Created agent",
		zap.String("agent_id", handle.ID),
		zap.String("agent_name", handle.Name),
		zap.String("model", handle.Model))
	return handle, nil
}

// Handle returns a copy of the shared agent, if one exists
func (l *Lifecycle) Handle() (models.AgentHandle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return models.AgentHandle{}, false
	}
	return cloneHandle(*l.handle), true
}

// EnsureTools makes sure the shared agent has every tool in tools enabled.
// When they already are, no backend call is made.
func (l *Lifecycle) EnsureTools(ctx context.Context, tools ...models.Tool) (models.AgentHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return models.AgentHandle{}, ConfigurationError("update agent tools", ErrNotInitialized)
	}

	merged := append([]models.Tool(nil), l.handle.Tools...)
	changed := false
	for _, t := range tools {
		if !models.HasTool(merged, t) {
			merged = append(merged, t)
			changed = true
		}
	}
	if !changed {
		return cloneHandle(*l.handle), nil
	}

	handle, err := l.backend.UpdateAgentTools(ctx, l.handle.ID, merged)
	if err != nil {
		return models.AgentHandle{}, BackendError("update agent tools", err)
	}
	if len(handle.Tools) == 0 {
		handle.Tools = merged
	}
	l.handle = &handle
	l.logger.Info("Updated agent tools",
		zap.String("agent_id", handle.ID),
		zap.Any("tools", handle.Tools))
	return cloneHandle(handle), nil
}

// NewEphemeral creates a private agent for a single call, with tools already enabled
func (l *Lifecycle) NewEphemeral(ctx context.Context, suffix string, tools ...models.Tool) (models.AgentHandle, error) {
	l.mu.Lock()
	if l.spec == nil {
		l.mu.Unlock()
		return models.AgentHandle{}, ConfigurationError("create call agent", ErrNotInitialized)
	}
	spec := *l.spec
	l.mu.Unlock()

	spec.Name = spec.Name + "-" + suffix
	spec.Tools = append([]models.Tool(nil), tools...)
	handle, err := l.backend.CreateAgent(ctx, spec)
	if err != nil {
		return models.AgentHandle{}, BackendError("create call agent", err)
	}
	if len(handle.Tools) == 0 {
		handle.Tools = spec.Tools
	}
	return handle, nil
}

// Delete removes an agent, logging instead of returning failures
func (l *Lifecycle) Delete(ctx context.Context, handle models.AgentHandle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.backend.DeleteAgent(ctx, handle.ID); err != nil {
		l.logger.Error("Failed to delete agent", zap.Error(err), zap.String("agent_id", handle.ID))
		return
	}
	l.logger.Info("Deleted agent", zap.String("agent_id", handle.ID))
}

// Teardown deletes the shared agent. It never fails the caller's shutdown.
func (l *Lifecycle) Teardown(ctx context.Context) {
	l.mu.Lock()
	handle := l.handle
	l.handle = nil
	l.mu.Unlock()

	if handle == nil {
		return
	}
	l.Delete(ctx, *handle)
}

func cloneHandle(h models.AgentHandle) models.AgentHandle {
	h.Tools = append([]models.Tool(nil), h.Tools...)
	return h
}
