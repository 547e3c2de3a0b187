package assistants

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/doc-analyzer/internal/analyzer"
)

type sweepServer struct {
	mu             sync.Mutex
	deletedAgents  []string
	deletedFiles   []string
	failFileDelete string
}

func (s *sweepServer) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistants", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []any{
					map[string]any{"id": "asst_1", "name": "document-agent-aaaa1111"},
					map[string]any{"id": "asst_2", "name": "invoice-bot"},
				},
				"last_id": "asst_2", "has_more": true,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []any{
				map[string]any{"id": "asst_3", "name": "document-agent-bbbb2222-c1"},
			},
			"last_id": "asst_3", "has_more": false,
		})
	})
	mux.HandleFunc("DELETE /assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.deletedAgents = append(s.deletedAgents, r.PathValue("id"))
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "deleted": true})
	})
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "file_1", "filename": "document_c1.pdf", "purpose": "assistants"},
			map[string]any{"id": "file_2", "filename": "training.jsonl", "purpose": "fine-tune"},
			map[string]any{"id": "file_3", "filename": "document_c2.png", "purpose": "assistants"},
		}})
	})
	mux.HandleFunc("DELETE /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == s.failFileDelete {
			apiError(w, http.StatusInternalServerError, "storage unavailable")
			return
		}
		s.mu.Lock()
		s.deletedFiles = append(s.deletedFiles, id)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	})
	return mux
}

func TestSweep(t *testing.T) {
	srv := &sweepServer{}
	c := newTestClient(t, srv.mux())

	res, err := c.Sweep(context.Background(), analyzer.AgentNamePrefix, analyzer.DocumentFilePrefix, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"asst_1", "asst_3"}, res.Agents)
	assert.Equal(t, []string{"file_1", "file_3"}, res.Files)
	assert.Equal(t, []string{"asst_1", "asst_3"}, srv.deletedAgents)
	assert.Equal(t, []string{"file_1", "file_3"}, srv.deletedFiles)
}

func TestSweep_DryRun(t *testing.T) {
	srv := &sweepServer{}
	c := newTestClient(t, srv.mux())

	res, err := c.Sweep(context.Background(), analyzer.AgentNamePrefix, analyzer.DocumentFilePrefix, true)
	require.NoError(t, err)
	assert.Len(t, res.Agents, 2)
	assert.Len(t, res.Files, 2)
	assert.Empty(t, srv.deletedAgents)
	assert.Empty(t, srv.deletedFiles)
}

func TestSweep_ContinuesPastFailures(t *testing.T) {
	srv := &sweepServer{failFileDelete: "file_1"}
	c := newTestClient(t, srv.mux())

	res, err := c.Sweep(context.Background(), analyzer.AgentNamePrefix, analyzer.DocumentFilePrefix, false)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.Contains(t, err.Error(), "delete file file_1")
	assert.ErrorIs(t, merr.Errors[0], analyzer.ErrTransient)

	assert.Equal(t, []string{"file_3"}, res.Files)
	assert.Equal(t, []string{"file_3"}, srv.deletedFiles)
	assert.Len(t, res.Agents, 2)
}
