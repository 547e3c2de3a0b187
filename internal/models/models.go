package models

import "time"

// Role identifies the author of a thread message
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "assistant"
)

// ContentType tags a single content part of a message
type ContentType string

const (
	TextContent  ContentType = "text"
	ImageContent ContentType = "image_file"
)

// ContentPart is one unit of a message payload
type ContentPart struct {
	Type   ContentType `json:"type"`
	Text   string      `json:"text,omitempty"`
	FileID string      `json:"file_id,omitempty"`
}

// Attachment binds an uploaded file to a message and enables tools for that file only
type Attachment struct {
	FileID string `json:"file_id"`
	Tools  []Tool `json:"tools"`
}

// Message represents one entry of a conversation thread
type Message struct {
	ID          string        `json:"id"`
	ThreadID    string        `json:"thread_id"`
	Role        Role          `json:"role"`
	Content     []ContentPart `json:"content"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// MessageRequest is what the caller posts into a thread
type MessageRequest struct {
	Role        Role
	Text        string
	Attachments []Attachment
}

// Thread represents an agent conversation container
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// SortOrder selects the listing direction of thread messages
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// RunStatus is the backend-reported state of a run
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Pending reports whether the backend is still working on the run.
// Everything else, including statuses unknown to this package, stops polling.
func (s RunStatus) Pending() bool {
	return s == RunQueued || s == RunInProgress
}

// Run is one execution of an agent against a thread
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AgentID   string    `json:"agent_id"`
	Status    RunStatus `json:"status"`
	LastError string    `json:"last_error,omitempty"`
}

// Tool is a capability enabled on an agent or on a single attachment
type Tool string

const (
	// ToolDocumentInspection lets the agent open and read attached files.
	ToolDocumentInspection Tool = "code_interpreter"
	ToolFileSearch         Tool = "file_search"
)

// HasTool reports whether tools contains t
func HasTool(tools []Tool, t Tool) bool {
	for _, have := range tools {
		if have == t {
			return true
		}
	}
	return false
}
