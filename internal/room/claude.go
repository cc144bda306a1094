package room

import (
	"encoding/json"
	"strings"
	"time"
)

// claudeLine is the wire shape of one line in claude's session transcript
// JSONL (~/.claude/projects/<hash>/<session_id>.jsonl). Only the fields the
// extractor needs are modeled, per spec.md §6.3.
type claudeLine struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	Message       *claudeMessage  `json:"message,omitempty"`
	IsMeta        bool            `json:"isMeta,omitempty"`
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
}

type claudeMessage struct {
	Role    string              `json:"role"`
	Content []claudeContentItem `json:"content"`
}

type claudeContentItem struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Content json.RawMessage `json:"content,omitempty"` // tool_result content, shape varies
}

// parseClaudeRow normalizes one claude JSONL line into the shared row shape.
func parseClaudeRow(raw []byte) (row, error) {
	var cl claudeLine
	if err := json.Unmarshal(raw, &cl); err != nil {
		return row{}, err
	}

	r := row{entryType: cl.Type}
	if ts, err := time.Parse(time.RFC3339Nano, cl.Timestamp); err == nil {
		r.timestamp = ts
	}

	// Fast-path turn-end marker: {"type":"system","subtype":"turn_duration"}.
	if cl.Type == "system" && cl.Subtype == "turn_duration" {
		r.turnMarker = "turn_duration"
		return r, nil
	}

	if cl.Message == nil {
		return r, nil
	}
	r.role = cl.Message.Role

	allToolResult := len(cl.Message.Content) > 0
	var textParts []string
	for _, item := range cl.Message.Content {
		switch item.Type {
		case "text":
			if strings.TrimSpace(item.Text) != "" {
				textParts = append(textParts, item.Text)
			}
			allToolResult = false
		case "tool_use", "thinking":
			allToolResult = false
		case "tool_result":
			// leave allToolResult as-is (a no-op marker type).
		default:
			allToolResult = false
		}
	}
	r.text = strings.Join(textParts, "\n")

	if r.entryType == "user" && r.role == "user" {
		r.toolResultOnly = allToolResult || cl.ToolUseResult != nil
		r.meta = cl.IsMeta || r.toolResultOnly || isMetaWrappedText(r.text)
	}

	return r, nil
}

// isMetaWrappedText recognizes system-reminder/command-wrapper/task
// notification bodies injected by the claude CLI itself rather than typed
// by the human, per spec.md §4.1's meta user row classification.
func isMetaWrappedText(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	metaPrefixes := []string{
		"<system-reminder>",
		"<command-name>",
		"<command-message>",
		"<command-args>",
		"<local-command-stdout>",
		"<task-notification",
		"<user-prompt-submit-hook>",
	}
	for _, p := range metaPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
