package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/models"
)

// Store serves documents from baseDir/<drive>/<item>.
type Store struct {
	baseDir string
}

var _ filestore.Store = (*Store)(nil)

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Stat(ctx context.Context, driveID, itemID string) (models.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.DocumentInfo{}, err
	}
	p, err := s.path(driveID, itemID)
	if err != nil {
		return models.DocumentInfo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return models.DocumentInfo{}, mapErr(err, p)
	}
	if st.IsDir() {
		return models.DocumentInfo{}, fmt.Errorf("%w: %s is a directory", filestore.ErrNotFound, itemID)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
	if mimeType == "" {
		mimeType, err = sniff(p)
		if err != nil {
			return models.DocumentInfo{}, err
		}
	}
	return models.DocumentInfo{Name: st.Name(), MimeType: mimeType, Size: st.Size()}, nil
}

func (s *Store) Open(ctx context.Context, driveID, itemID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(driveID, itemID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapErr(err, p)
	}
	return f, nil
}

// path joins drive and item under baseDir, refusing anything that escapes it
func (s *Store) path(driveID, itemID string) (string, error) {
	if itemID == "" {
		return "", fmt.Errorf("%w: empty item id", filestore.ErrNotFound)
	}
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	p := filepath.Join(base, filepath.FromSlash(driveID), filepath.FromSlash(itemID))
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s/%s is outside the store", filestore.ErrNotFound, driveID, itemID)
	}
	return p, nil
}

func sniff(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", mapErr(err, p)
	}
	defer f.Close()

	var buf [512]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read sniff: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}

func mapErr(err error, p string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", filestore.ErrNotFound, filepath.Base(p))
	}
	return err
}
