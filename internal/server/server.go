package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/models"
)

// Analyzer turns one document into the agent's text result.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

// ImageAnalyzer is an Analyzer restricted to some MIME types.
type ImageAnalyzer interface {
	Analyzer
	Supports(mimeType string) bool
}

// Journal is the read side of the analysis journal.
type Journal interface {
	GetAnalysis(ctx context.Context, callID string) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
}

// Deps are the collaborators of the HTTP layer. Vision may be nil.
type Deps struct {
	Analyzer Analyzer
	Vision   ImageAnalyzer
	Files    filestore.Store
	Journal  Journal
	Metrics  *Metrics
	Logger   *zap.Logger
}

// Options tune the HTTP layer.
type Options struct {
	APIKeys         []string
	MaxDocumentSize int64
}

// Handler wires HTTP handlers to the analysis pipeline.
type Handler struct {
	deps Deps
	opts Options
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps, opts Options) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	h := &Handler{deps: deps, opts: opts}

	r := gin.New()
	r.Use(
		RequestID(),
		Logging(deps.Logger, deps.Metrics),
		Recovery(deps.Logger),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", deps.Metrics.Handler())

	api := r.Group("/", APIKeyAuth(opts.APIKeys, deps.Logger))
	h.RegisterRoutes(api)
	return r
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/DocumentAnalyzer", h.analyzeDocument)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}
