package analyzer

import "github.com/xaenox/doc-analyzer/internal/models"

// SelectResult scans messages in the given order and returns the last text
// part written by the agent. The text is not checked against any schema.
func SelectResult(messages []models.Message) (string, bool) {
	var (
		result string
		found  bool
	)
	for _, m := range messages {
		if m.Role != models.RoleAgent {
			continue
		}
		for _, part := range m.Content {
			if part.Type != models.TextContent {
				continue
			}
			result = part.Text
			found = true
		}
	}
	return result, found
}
