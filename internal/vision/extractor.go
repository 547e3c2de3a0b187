package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
	"github.com/xaenox/doc-analyzer/internal/models"
)

// Extractor answers image documents with a single chat completion.
// No agent, file or run is created on the backend.
type Extractor struct {
	client       *openai.Client
	model        string
	maxTokens    int
	detail       openai.ImageURLDetail
	instructions string
	journal      analyzer.Journal
	instanceID   string
	logger       *zap.Logger
}

type Options struct {
	Model        string
	MaxTokens    int
	Detail       string
	Instructions string
	InstanceID   string
}

func New(client *openai.Client, opts Options, journal analyzer.Journal, logger *zap.Logger) (*Extractor, error) {
	if opts.Model == "" {
		return nil, analyzer.ConfigurationError("prepare vision", errors.New("vision model is required"))
	}
	if strings.TrimSpace(opts.Instructions) == "" {
		return nil, analyzer.ConfigurationError("prepare vision", errors.New("system prompt is required"))
	}
	detail := openai.ImageURLDetail(opts.Detail)
	if detail == "" {
		detail = openai.ImageURLDetailHigh
	}
	return &Extractor{
		client:       client,
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		detail:       detail,
		instructions: opts.Instructions,
		journal:      journal,
		instanceID:   opts.InstanceID,
		logger:       logger,
	}, nil
}

// NewFromConfig builds the SDK client the same way the agent backend does
func NewFromConfig(cfg assistants.Config, opts Options, journal analyzer.Journal, logger *zap.Logger) (*Extractor, error) {
	return New(assistants.NewAPIClient(cfg), opts, journal, logger)
}

// Supports reports whether mimeType can go through the vision path
func (e *Extractor) Supports(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

func (e *Extractor) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	callID := analyzer.NewInstanceID()
	log := e.logger.With(zap.String("call_id", callID), zap.String("path", "vision"))
	rec := &models.AnalysisRecord{
		CallID:       callID,
		InstanceID:   e.instanceID,
		MimeType:     req.MimeType,
		DocumentSize: int64(len(req.Document)),
		StartedAt:    time.Now().UTC(),
	}
	log.Info("Starting analysis", zap.String("mime_type", req.MimeType), zap.Int("document_bytes", len(req.Document)))

	text, err := e.complete(ctx, req)
	finished := time.Now().UTC()
	rec.FinishedAt = &finished

	var result *models.AnalysisResult
	switch {
	case err != nil:
		err = analyzer.BackendError("chat completion", assistants.Classify(err))
		switch analyzer.KindOf(err) {
		case analyzer.KindTimeout:
			rec.Outcome = models.OutcomeTimedOut
		case analyzer.KindCanceled:
			rec.Outcome = models.OutcomeCanceled
		default:
			rec.Outcome = models.OutcomeFailed
		}
		rec.Error = err.Error()
		log.Error("Failed to get vision response", zap.Error(err))
	default:
		result = &models.AnalysisResult{CallID: callID, Text: text, Found: text != "", RunStatus: models.RunCompleted}
		rec.Outcome = models.OutcomeSucceeded
		if !result.Found {
			rec.Outcome = models.OutcomeEmpty
		}
		log.Info("Analysis completed", zap.Bool("found", result.Found), zap.Int("result_bytes", len(text)))
	}

	if e.journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if jerr := e.journal.SaveAnalysis(jctx, rec); jerr != nil {
			log.Warn("Failed to save analysis record", zap.Error(jerr))
		}
		cancel()
	}
	return result, err
}

func (e *Extractor) complete(ctx context.Context, req models.AnalysisRequest) (string, error) {
	dataURL := "data:" + req.MimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Document)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.instructions,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: analyzer.BuildUserMessage(req.MimeType, req.ExpectedSchema, req.UserInstructions),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: e.detail},
					},
				},
			},
		},
		MaxTokens:      e.maxTokens,
		Temperature:    math.SmallestNonzeroFloat32, // a literal 0 is dropped by omitempty
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
