package assistants

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

const (
	APITypeOpenAI = "openai"
	APITypeAzure  = "azure"

	// Azure needs a preview api-version for the v2 agent endpoints.
	defaultAzureAPIVersion = "2024-05-01-preview"
	listPageSize           = 100
)

// Config selects and authenticates the agent endpoint
type Config struct {
	APIKey     string
	BaseURL    string
	APIType    string
	APIVersion string
	HTTPClient *http.Client
}

// Client implements analyzer.Backend on top of the go-openai agent endpoints
type Client struct {
	api    *openai.Client
	logger *zap.Logger
}

var _ analyzer.Backend = (*Client)(nil)

func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{api: NewAPIClient(cfg), logger: logger}
}

// NewAPIClient builds the raw SDK client for cfg. Azure endpoints get the
// api-key header and a preview api-version.
func NewAPIClient(cfg Config) *openai.Client {
	var oc openai.ClientConfig
	if strings.EqualFold(cfg.APIType, APITypeAzure) {
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		oc.APIVersion = defaultAzureAPIVersion
		oc.AssistantVersion = "v2"
	} else {
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
	}
	if cfg.APIVersion != "" {
		oc.APIVersion = cfg.APIVersion
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return openai.NewClientWithConfig(oc)
}

func (c *Client) CreateAgent(ctx context.Context, spec models.AgentSpec) (models.AgentHandle, error) {
	temperature := spec.Temperature
	req := openai.AssistantRequest{
		Model:        spec.Model,
		Name:         &spec.Name,
		Instructions: &spec.Instructions,
		Temperature:  &temperature,
	}
	if len(spec.Tools) > 0 {
		req.Tools = toAssistantTools(spec.Tools)
	}
	a, err := c.api.CreateAssistant(ctx, req)
	if err != nil {
		return models.AgentHandle{}, Classify(err)
	}
	return toHandle(a), nil
}

// UpdateAgentTools replaces the agent's tool set. The model is re-sent because
// the modify endpoint treats it as required.
func (c *Client) UpdateAgentTools(ctx context.Context, agentID string, tools []models.Tool) (models.AgentHandle, error) {
	current, err := c.api.RetrieveAssistant(ctx, agentID)
	if err != nil {
		return models.AgentHandle{}, Classify(err)
	}
	a, err := c.api.ModifyAssistant(ctx, agentID, openai.AssistantRequest{
		Model: current.Model,
		Tools: toAssistantTools(tools),
	})
	if err != nil {
		return models.AgentHandle{}, Classify(err)
	}
	return toHandle(a), nil
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := c.api.DeleteAssistant(ctx, agentID); err != nil {
		return Classify(err)
	}
	return nil
}

// ListAgents pages through every agent visible to the credentials
func (c *Client) ListAgents(ctx context.Context) ([]models.AgentHandle, error) {
	var (
		out   []models.AgentHandle
		after *string
	)
	limit := listPageSize
	for {
		page, err := c.api.ListAssistants(ctx, &limit, nil, after, nil)
		if err != nil {
			return nil, Classify(err)
		}
		for _, a := range page.Assistants {
			out = append(out, toHandle(a))
		}
		if !page.HasMore || page.LastID == nil || len(page.Assistants) == 0 {
			return out, nil
		}
		after = page.LastID
	}
}

func (c *Client) UploadFile(ctx context.Context, data []byte, filename string, purpose models.FilePurpose) (models.UploadedFile, error) {
	f, err := c.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeType(purpose),
	})
	if err != nil {
		return models.UploadedFile{}, Classify(err)
	}
	return toUploaded(f), nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.api.DeleteFile(ctx, fileID); err != nil {
		return Classify(err)
	}
	return nil
}

func (c *Client) ListFiles(ctx context.Context) ([]models.UploadedFile, error) {
	list, err := c.api.ListFiles(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	out := make([]models.UploadedFile, 0, len(list.Files))
	for _, f := range list.Files {
		out = append(out, toUploaded(f))
	}
	return out, nil
}

func (c *Client) CreateThread(ctx context.Context) (models.Thread, error) {
	t, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return models.Thread{}, Classify(err)
	}
	return models.Thread{ID: t.ID, CreatedAt: time.Unix(t.CreatedAt, 0).UTC()}, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.api.DeleteThread(ctx, threadID); err != nil {
		return Classify(err)
	}
	return nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID string, msg models.MessageRequest) (models.Message, error) {
	req := openai.MessageRequest{
		Role:    string(msg.Role),
		Content: msg.Text,
	}
	for _, a := range msg.Attachments {
		att := openai.ThreadAttachment{FileID: a.FileID, Tools: make([]openai.ThreadAttachmentTool, 0, len(a.Tools))}
		for _, t := range a.Tools {
			att.Tools = append(att.Tools, openai.ThreadAttachmentTool{Type: string(t)})
		}
		req.Attachments = append(req.Attachments, att)
	}
	m, err := c.api.CreateMessage(ctx, threadID, req)
	if err != nil {
		return models.Message{}, Classify(err)
	}
	out := toMessage(m)
	out.Attachments = msg.Attachments
	return out, nil
}

// ListMessages returns the complete transcript in the requested order, following pagination
func (c *Client) ListMessages(ctx context.Context, threadID string, order models.SortOrder) ([]models.Message, error) {
	var (
		out   []models.Message
		after *string
	)
	limit := listPageSize
	dir := string(order)
	for {
		page, err := c.api.ListMessage(ctx, threadID, &limit, &dir, after, nil, nil)
		if err != nil {
			return nil, Classify(err)
		}
		for _, m := range page.Messages {
			out = append(out, toMessage(m))
		}
		if !page.HasMore || page.LastID == nil || len(page.Messages) == 0 {
			return out, nil
		}
		after = page.LastID
	}
}

func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (models.Run, error) {
	r, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: agentID})
	if err != nil {
		return models.Run{}, Classify(err)
	}
	return toRun(r), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (models.Run, error) {
	r, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return models.Run{}, Classify(err)
	}
	return toRun(r), nil
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (models.Run, error) {
	r, err := c.api.CancelRun(ctx, threadID, runID)
	if err != nil {
		return models.Run{}, Classify(err)
	}
	return toRun(r), nil
}

// Classify tags SDK errors with the analyzer sentinels. The SDK error stays
// in the chain for logging.
func Classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", analyzer.ErrNotFound, err)
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", analyzer.ErrTransient, err)
	default:
		return err
	}
}

func toAssistantTools(tools []models.Tool) []openai.AssistantTool {
	out := make([]openai.AssistantTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.AssistantTool{Type: openai.AssistantToolType(t)})
	}
	return out
}

func toHandle(a openai.Assistant) models.AgentHandle {
	h := models.AgentHandle{ID: a.ID, Model: a.Model}
	if a.Name != nil {
		h.Name = *a.Name
	}
	for _, t := range a.Tools {
		h.Tools = append(h.Tools, models.Tool(t.Type))
	}
	return h
}

func toUploaded(f openai.File) models.UploadedFile {
	return models.UploadedFile{ID: f.ID, Filename: f.FileName, Purpose: models.FilePurpose(f.Purpose)}
}

func toMessage(m openai.Message) models.Message {
	out := models.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      models.Role(m.Role),
		CreatedAt: time.Unix(int64(m.CreatedAt), 0).UTC(),
	}
	for _, part := range m.Content {
		switch {
		case part.Type == string(models.TextContent) && part.Text != nil:
			out.Content = append(out.Content, models.ContentPart{Type: models.TextContent, Text: part.Text.Value})
		case part.Type == string(models.ImageContent) && part.ImageFile != nil:
			out.Content = append(out.Content, models.ContentPart{Type: models.ImageContent, FileID: part.ImageFile.FileID})
		}
	}
	return out
}

func toRun(r openai.Run) models.Run {
	out := models.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		AgentID:  r.AssistantID,
		Status:   models.RunStatus(r.Status),
	}
	if r.LastError != nil {
		out.LastError = fmt.Sprintf("%s: %s", r.LastError.Code, r.LastError.Message)
	}
	return out
}
