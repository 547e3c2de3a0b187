package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/doc-analyzer/internal/models"
)

// fakeBackend is an in-memory Backend. Statuses is consumed by GetRun one
// entry per call; the last entry repeats. Fail forces an error per operation.
type fakeBackend struct {
	mu sync.Mutex

	Statuses []models.RunStatus
	Messages []models.Message
	Fail     map[string]error

	seq     int
	calls   map[string]int
	agents  map[string]models.AgentHandle
	files   map[string]models.UploadedFile
	threads map[string]bool
	posted  []models.MessageRequest
	created []models.AgentSpec
	uploads []string
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		Fail:    map[string]error{},
		calls:   map[string]int{},
		agents:  map[string]models.AgentHandle{},
		files:   map[string]models.UploadedFile{},
		threads: map[string]bool{},
	}
}

func (f *fakeBackend) hit(op string) error {
	f.calls[op]++
	return f.Fail[op]
}

func (f *fakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *fakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) LiveFiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func (f *fakeBackend) LiveAgents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.agents)
}

func (f *fakeBackend) CreateAgent(_ context.Context, spec models.AgentSpec) (models.AgentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_agent"); err != nil {
		return models.AgentHandle{}, err
	}
	f.created = append(f.created, spec)
	h := models.AgentHandle{ID: f.nextID("asst"), Name: spec.Name, Model: spec.Model, Tools: spec.Tools}
	f.agents[h.ID] = h
	return h, nil
}

func (f *fakeBackend) UpdateAgentTools(_ context.Context, agentID string, tools []models.Tool) (models.AgentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("update_agent"); err != nil {
		return models.AgentHandle{}, err
	}
	h, ok := f.agents[agentID]
	if !ok {
		return models.AgentHandle{}, ErrNotFound
	}
	h.Tools = append([]models.Tool(nil), tools...)
	f.agents[agentID] = h
	return h, nil
}

func (f *fakeBackend) DeleteAgent(_ context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete_agent"); err != nil {
		return err
	}
	delete(f.agents, agentID)
	return nil
}

func (f *fakeBackend) UploadFile(_ context.Context, data []byte, filename string, purpose models.FilePurpose) (models.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("upload_file"); err != nil {
		return models.UploadedFile{}, err
	}
	file := models.UploadedFile{ID: f.nextID("file"), Filename: filename, Purpose: purpose}
	f.files[file.ID] = file
	f.uploads = append(f.uploads, filename)
	return file, nil
}

func (f *fakeBackend) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete_file"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, fileID)
	delete(f.files, fileID)
	return nil
}

func (f *fakeBackend) CreateThread(_ context.Context) (models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_thread"); err != nil {
		return models.Thread{}, err
	}
	t := models.Thread{ID: f.nextID("thread"), CreatedAt: time.Now()}
	f.threads[t.ID] = true
	return t, nil
}

func (f *fakeBackend) DeleteThread(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete_thread"); err != nil {
		return err
	}
	delete(f.threads, threadID)
	return nil
}

func (f *fakeBackend) CreateMessage(_ context.Context, threadID string, msg models.MessageRequest) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_message"); err != nil {
		return models.Message{}, err
	}
	if !f.threads[threadID] {
		return models.Message{}, ErrNotFound
	}
	f.posted = append(f.posted, msg)
	return models.Message{
		ID:          f.nextID("msg"),
		ThreadID:    threadID,
		Role:        msg.Role,
		Content:     []models.ContentPart{{Type: models.TextContent, Text: msg.Text}},
		Attachments: msg.Attachments,
	}, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, threadID string, order models.SortOrder) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list_messages"); err != nil {
		return nil, err
	}
	return append([]models.Message(nil), f.Messages...), nil
}

func (f *fakeBackend) CreateRun(_ context.Context, threadID, agentID string) (models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_run"); err != nil {
		return models.Run{}, err
	}
	if _, ok := f.agents[agentID]; !ok {
		return models.Run{}, ErrNotFound
	}
	return models.Run{ID: f.nextID("run"), ThreadID: threadID, AgentID: agentID, Status: models.RunQueued}, nil
}

func (f *fakeBackend) GetRun(_ context.Context, threadID, runID string) (models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls["get_run"]
	if err := f.hit("get_run"); err != nil {
		return models.Run{}, err
	}
	status := models.RunCompleted
	if len(f.Statuses) > 0 {
		if n >= len(f.Statuses) {
			n = len(f.Statuses) - 1
		}
		status = f.Statuses[n]
	}
	return models.Run{ID: runID, Status: status}, nil
}

func (f *fakeBackend) CancelRun(_ context.Context, threadID, runID string) (models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("cancel_run"); err != nil {
		return models.Run{}, err
	}
	return models.Run{ID: runID, ThreadID: threadID, Status: models.RunCancelling}, nil
}

type memJournal struct {
	mu      sync.Mutex
	records []models.AnalysisRecord
	err     error
}

func (j *memJournal) SaveAnalysis(_ context.Context, rec *models.AnalysisRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, *rec)
	return j.err
}

func (j *memJournal) last() models.AnalysisRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records[len(j.records)-1]
}

func agentText(text string) models.Message {
	return models.Message{Role: models.RoleAgent, Content: []models.ContentPart{{Type: models.TextContent, Text: text}}}
}

func userText(text string) models.Message {
	return models.Message{Role: models.RoleUser, Content: []models.ContentPart{{Type: models.TextContent, Text: text}}}
}
