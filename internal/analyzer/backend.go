package analyzer

import (
	"context"

	"github.com/xaenox/doc-analyzer/internal/models"
)

// Backend is the remote agent service the analyzer drives.
// Implementations wrap ErrNotFound and ErrTransient where they apply.
type Backend interface {
	CreateAgent(ctx context.Context, spec models.AgentSpec) (models.AgentHandle, error)
	UpdateAgentTools(ctx context.Context, agentID string, tools []models.Tool) (models.AgentHandle, error)
	DeleteAgent(ctx context.Context, agentID string) error

	UploadFile(ctx context.Context, data []byte, filename string, purpose models.FilePurpose) (models.UploadedFile, error)
	DeleteFile(ctx context.Context, fileID string) error

	CreateThread(ctx context.Context) (models.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	CreateMessage(ctx context.Context, threadID string, msg models.MessageRequest) (models.Message, error)
	ListMessages(ctx context.Context, threadID string, order models.SortOrder) ([]models.Message, error)

	CreateRun(ctx context.Context, threadID, agentID string) (models.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (models.Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (models.Run, error)
}

// Journal receives one record per analysis call
type Journal interface {
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
}
