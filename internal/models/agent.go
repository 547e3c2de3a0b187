package models

// AgentSpec describes an agent to create
type AgentSpec struct {
	Name         string
	Model        string
	Instructions string
	Temperature  float32
	Tools        []Tool
}

// AgentHandle identifies a remote extraction agent
type AgentHandle struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
	Tools []Tool `json:"tools"`
}

// FilePurpose tags an uploaded file with its intended use
type FilePurpose string

const PurposeAgentInput FilePurpose = "assistants"

// UploadedFile is a transient file held by the agent backend
type UploadedFile struct {
	ID       string      `json:"id"`
	Filename string      `json:"filename"`
	Purpose  FilePurpose `json:"purpose"`
}
