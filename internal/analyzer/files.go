package analyzer

import (
	"context"
	"time"

	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

// FileHandler moves documents in and out of the backend's file area
type FileHandler struct {
	backend Backend
	logger  *zap.Logger
	timeout time.Duration
}

func NewFileHandler(backend Backend, cleanupTimeout time.Duration, logger *zap.Logger) *FileHandler {
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &FileHandler{backend: backend, logger: logger, timeout: cleanupTimeout}
}

// Upload stores data as a transient backend file
func (h *FileHandler) Upload(ctx context.Context, data []byte, filename string, purpose models.FilePurpose) (models.UploadedFile, error) {
	file, err := h.backend.UploadFile(ctx, data, filename, purpose)
	if err != nil {
		return models.UploadedFile{}, BackendError("upload file", err)
	}
	if file.Filename == "" {
		file.Filename = filename
	}
	if file.Purpose == "" {
		file.Purpose = purpose
	}
	return file, nil
}

// Delete removes an uploaded file. It runs on a context detached from the
// caller's cancellation and only logs failures.
func (h *FileHandler) Delete(ctx context.Context, file models.UploadedFile, logger *zap.Logger) {
	if logger == nil {
		logger = h.logger
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	if err := h.backend.DeleteFile(ctx, file.ID); err != nil {
		logger.Error("Failed to delete file", zap.Error(err), zap.String("file_id", file.ID))
		return
	}
	logger.Info("Deleted file", zap.String("file_id", file.ID))
}
