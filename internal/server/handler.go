package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/models"
	"github.com/xaenox/doc-analyzer/internal/schema"
	"github.com/xaenox/doc-analyzer/internal/storage"
)

const (
	pathAgent  = "agent"
	pathVision = "vision"
)

type analyzeRequest struct {
	DriveID            string          `json:"driveId"`
	DriveItemID        string          `json:"driveItemId"`
	UserPrompt         string          `json:"userPrompt"`
	ExpectedJSONSchema json.RawMessage `json:"expectedJsonSchema"`
}

// schemaText accepts the schema either as a JSON string or as an inline JSON object
func (r analyzeRequest) schemaText() (string, error) {
	raw := bytes.TrimSpace(r.ExpectedJSONSchema)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	if raw[0] != '{' {
		return "", errors.New("schema must be a string or an object")
	}
	return string(raw), nil
}

func (h *Handler) analyzeDocument(c *gin.Context) {
	logger := h.deps.Logger.With(zap.String("request_id", RequestIDFromContext(c)))

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, logger, http.StatusBadRequest, "validation_error", "invalid request body", err)
		return
	}
	req.DriveID = strings.TrimSpace(req.DriveID)
	req.DriveItemID = strings.TrimSpace(req.DriveItemID)
	req.UserPrompt = strings.TrimSpace(req.UserPrompt)
	schemaRaw, err := req.schemaText()
	if err != nil {
		respondError(c, logger, http.StatusBadRequest, "validation_error", "expectedJsonSchema must be a string or an object", err)
		return
	}

	switch {
	case req.DriveID == "":
		respondError(c, logger, http.StatusBadRequest, "validation_error", "driveId is required", nil)
		return
	case req.DriveItemID == "":
		respondError(c, logger, http.StatusBadRequest, "validation_error", "driveItemId is required", nil)
		return
	case req.UserPrompt == "":
		respondError(c, logger, http.StatusBadRequest, "validation_error", "userPrompt is required", nil)
		return
	case schemaRaw == "":
		respondError(c, logger, http.StatusBadRequest, "validation_error", "expectedJsonSchema is required", nil)
		return
	}

	// free-form schema text is forwarded to the agent as is, only the result check is skipped
	compiled, err := schema.Compile(schemaRaw)
	if err != nil {
		logger.Warn("analysis.schema_unchecked", zap.Error(err))
	}

	ctx := c.Request.Context()
	data, info, err := filestore.Fetch(ctx, h.deps.Files, req.DriveID, req.DriveItemID, h.opts.MaxDocumentSize)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrNotFound):
			respondError(c, logger, http.StatusNotFound, "not_found", "The specified document was not found.", err)
		case errors.Is(err, filestore.ErrTooLarge):
			respondError(c, logger, http.StatusRequestEntityTooLarge, "document_too_large", "The specified document is too large.", err)
		default:
			respondError(c, logger, http.StatusBadGateway, "file_store_error", "The document could not be retrieved.", err)
		}
		return
	}
	logger = logger.With(
		zap.String("drive_id", req.DriveID),
		zap.String("drive_item_id", req.DriveItemID),
		zap.String("mime_type", info.MimeType),
		zap.Int64("size", int64(len(data))),
	)

	backend, path := h.deps.Analyzer, pathAgent
	if h.deps.Vision != nil && h.deps.Vision.Supports(info.MimeType) {
		backend, path = h.deps.Vision, pathVision
	}

	start := time.Now()
	result, err := backend.Analyze(ctx, models.AnalysisRequest{
		Document:         data,
		MimeType:         info.MimeType,
		ExpectedSchema:   schemaRaw,
		UserInstructions: req.UserPrompt,
	})
	if err != nil {
		status, code, message := statusForAnalysisError(err)
		h.deps.Metrics.observeAnalysis(path, outcomeFor(status), time.Since(start))
		respondError(c, logger, status, code, message, err)
		return
	}
	took := time.Since(start)

	if !result.Found {
		h.deps.Metrics.observeAnalysis(path, models.OutcomeEmpty, took)
		logger.Info("analysis.empty", zap.String("call_id", result.CallID), zap.String("path", path))
		c.Status(http.StatusNoContent)
		return
	}

	h.deps.Metrics.observeAnalysis(path, models.OutcomeSucceeded, took)
	if compiled != nil {
		if err := compiled.Check([]byte(result.Text)); err != nil {
			h.deps.Metrics.schemaMismatch()
			logger.Warn("analysis.schema_mismatch", zap.String("call_id", result.CallID), zap.Error(err))
		}
	}
	logger.Info("analysis.complete",
		zap.String("call_id", result.CallID),
		zap.String("path", path),
		zap.Duration("took", took),
	)
	c.Header("X-Call-Id", result.CallID)
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(result.Text))
}

// statusClientClosedRequest is the nginx convention for a caller that hung up first
const statusClientClosedRequest = 499

func statusForAnalysisError(err error) (int, string, string) {
	switch analyzer.KindOf(err) {
	case analyzer.KindTimeout:
		return http.StatusGatewayTimeout, "analysis_timeout", "The document analysis timed out."
	case analyzer.KindCanceled:
		return statusClientClosedRequest, "client_closed_request", "The request was cancelled before the analysis finished."
	case analyzer.KindBackend:
		return http.StatusBadGateway, "analysis_failed", "The document analysis failed."
	case analyzer.KindConfiguration:
		return http.StatusInternalServerError, "configuration_error", "The analyzer is not configured correctly."
	default:
		return http.StatusInternalServerError, "internal_error", "Unexpected server error"
	}
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, h.deps.Logger, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	recs, err := h.deps.Journal.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.deps.Logger, http.StatusInternalServerError, "internal_error", "failed to list analyses", err)
		return
	}
	if recs == nil {
		recs = []*models.AnalysisRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": recs})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	rec, err := h.deps.Journal.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, h.deps.Logger, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respondError(c, h.deps.Logger, http.StatusInternalServerError, "internal_error", "failed to load analysis", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
