package analyzer

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"strings"
)

// DocumentFilePrefix starts the name of every file this service uploads
const DocumentFilePrefix = "document_"

const userMessageTemplate = `The attached document is of type: %s

Extract all key information in json according to this schema: %s

Here are some additional user's instructions to help: %s`

// LoadPrompt reads the agent system prompt from path
func LoadPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ConfigurationError("load prompt", errors.New("prompt path is required"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ConfigurationError("load prompt", fmt.Errorf("prompt file not found: %s: %w", path, err))
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", ConfigurationError("load prompt", fmt.Errorf("prompt file is empty: %s", path))
	}
	return prompt, nil
}

// BuildUserMessage renders the extraction request posted alongside the document
func BuildUserMessage(mimeType, schema, instructions string) string {
	return fmt.Sprintf(userMessageTemplate, mimeType, schema, instructions)
}

// DocumentFilename names the uploaded copy of a document after the call that owns it
func DocumentFilename(callID, mimeType string) string {
	return DocumentFilePrefix + callID + extensionFor(mimeType)
}

var preferredExtensions = map[string]string{
	"application/pdf":          ".pdf",
	"application/octet-stream": ".pdf",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"text/plain":               ".txt",
	"text/csv":                 ".csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
}

func extensionFor(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".pdf"
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	// code interpreter picks its reader from the extension; pdf is the common case
	return ".pdf"
}
