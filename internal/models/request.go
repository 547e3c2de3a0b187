package models

// AnalysisRequest carries one document and the caller's extraction instructions.
// The schema is passed to the agent verbatim.
type AnalysisRequest struct {
	Document         []byte
	MimeType         string
	ExpectedSchema   string
	UserInstructions string
}

// AnalysisResult is the outcome of a successful analysis call.
// Found is false when the agent never produced any text.
type AnalysisResult struct {
	CallID    string    `json:"call_id"`
	Text      string    `json:"text"`
	Found     bool      `json:"found"`
	RunStatus RunStatus `json:"run_status,omitempty"`
}

// DocumentInfo is the file store's view of a drive item
type DocumentInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}
