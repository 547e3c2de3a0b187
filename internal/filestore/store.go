package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xaenox/doc-analyzer/internal/models"
)

// DefaultMimeType is used when a store cannot tell what a document is
const DefaultMimeType = "application/octet-stream"

// ErrNotFound is wrapped by stores when the drive or item does not exist
var ErrNotFound = errors.New("document not found")

// ErrTooLarge is returned when a document exceeds the caller's size limit
var ErrTooLarge = errors.New("document too large")

// Store resolves a (drive, item) pair to a document.
type Store interface {
	Stat(ctx context.Context, driveID, itemID string) (models.DocumentInfo, error)
	Open(ctx context.Context, driveID, itemID string) (io.ReadCloser, error)
}

// Fetch reads the metadata and then the full content of one document.
// maxBytes <= 0 disables the size limit.
func Fetch(ctx context.Context, s Store, driveID, itemID string, maxBytes int64) ([]byte, models.DocumentInfo, error) {
	info, err := s.Stat(ctx, driveID, itemID)
	if err != nil {
		return nil, models.DocumentInfo{}, err
	}
	if strings.TrimSpace(info.MimeType) == "" {
		info.MimeType = DefaultMimeType
	}
	if maxBytes > 0 && info.Size > maxBytes {
		return nil, info, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size)
	}

	rc, err := s.Open(ctx, driveID, itemID)
	if err != nil {
		return nil, info, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, info, fmt.Errorf("read document: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, info, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if info.Size == 0 {
		info.Size = int64(len(data))
	}
	return data, info, nil
}
