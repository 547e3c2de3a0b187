package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
	"github.com/xaenox/doc-analyzer/internal/models"
)

type journal struct {
	mu      sync.Mutex
	records []models.AnalysisRecord
}

func (j *journal) SaveAnalysis(_ context.Context, rec *models.AnalysisRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, *rec)
	return nil
}

func newExtractor(t *testing.T, h http.HandlerFunc, j analyzer.Journal) *Extractor {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e, err := NewFromConfig(assistants.Config{APIKey: "sk-test", BaseURL: srv.URL},
		Options{Model: "gpt-4o", Instructions: "Return ONLY a valid JSON object.", InstanceID: "inst0001"}, j, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestAnalyze(t *testing.T) {
	var body map[string]any
	j := &journal{}
	e := newExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1",
			"choices": []any{map[string]any{
				"index":   0,
				"message": map[string]any{"role": "assistant", "content": ` {"invoiceNumber":"INV-1"} `},
			}},
		})
	}, j)

	res, err := e.Analyze(context.Background(), models.AnalysisRequest{
		Document: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png", ExpectedSchema: `{"type":"object"}`, UserInstructions: "none",
	})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, `{"invoiceNumber":"INV-1"}`, res.Text)

	assert.Equal(t, "gpt-4o", body["model"])
	require.Contains(t, body, "temperature")
	assert.InDelta(t, 0, body["temperature"], 1e-6)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "image/png")
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))
	assert.Equal(t, "high", image["detail"])

	require.Len(t, j.records, 1)
	assert.Equal(t, models.OutcomeSucceeded, j.records[0].Outcome)
	assert.Equal(t, "inst0001", j.records[0].InstanceID)
}

func TestAnalyze_BackendFailure(t *testing.T) {
	j := &journal{}
	e := newExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream","type":"server_error"}}`))
	}, j)

	_, err := e.Analyze(context.Background(), models.AnalysisRequest{Document: []byte("x"), MimeType: "image/jpeg"})
	require.Error(t, err)
	assert.Equal(t, analyzer.KindBackend, analyzer.KindOf(err))
	assert.ErrorIs(t, err, analyzer.ErrTransient)
	assert.Equal(t, models.OutcomeFailed, j.records[0].Outcome)
}

func TestSupports(t *testing.T) {
	e := &Extractor{}
	assert.True(t, e.Supports("image/png"))
	assert.True(t, e.Supports("IMAGE/JPEG"))
	assert.False(t, e.Supports("application/pdf"))
	assert.False(t, e.Supports(""))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Instructions: "x"}, nil, zap.NewNop())
	assert.Equal(t, analyzer.KindConfiguration, analyzer.KindOf(err))

	_, err = New(nil, Options{Model: "gpt-4o"}, nil, zap.NewNop())
	assert.Equal(t, analyzer.KindConfiguration, analyzer.KindOf(err))
}
