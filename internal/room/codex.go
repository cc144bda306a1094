package room

import (
	"encoding/json"
	"strings"
	"time"
)

// codexLine is the wire shape of one line in codex's rollout JSONL. Two row
// shapes are relevant to the extractor: event_msg rows (task_started /
// task_complete turn markers, and agent/user message events) and
// response_item rows (the structured transcript of user/assistant turns).
type codexLine struct {
	Type      string       `json:"type"`
	Timestamp string       `json:"timestamp,omitempty"`
	Payload   codexPayload `json:"payload"`
}

type codexPayload struct {
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`

	// Structured response_item message content, mirroring claude's content
	// block list so the same tool-result-only heuristic applies.
	Content []codexContentItem `json:"content,omitempty"`
}

type codexContentItem struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

func parseCodexRow(raw []byte) (row, error) {
	var cl codexLine
	if err := json.Unmarshal(raw, &cl); err != nil {
		return row{}, err
	}

	r := row{}
	if ts, err := time.Parse(time.RFC3339Nano, cl.Timestamp); err == nil {
		r.timestamp = ts
	}

	switch cl.Type {
	case "event_msg":
		switch cl.Payload.Type {
		case "task_started", "task_complete":
			r.turnMarker = cl.Payload.Type
			return r, nil
		case "user_message":
			r.entryType = "user"
			r.role = "user"
			r.text = cl.Payload.Text
			r.meta = isCodexMetaText(r.text)
		case "agent_message":
			r.entryType = "assistant"
			r.role = "assistant"
			r.text = cl.Payload.Text
		case "token_count", "agent_reasoning", "exec_command_begin", "exec_command_end", "mcp_tool_call_begin", "mcp_tool_call_end":
			// Not room events; not turn markers either.
		}
		return r, nil

	case "response_item":
		if cl.Payload.Type != "message" {
			return r, nil
		}
		r.entryType = "message_row"
		r.role = cl.Payload.Role
		if r.role == "user" {
			r.entryType = "user"
		} else if r.role == "assistant" {
			r.entryType = "assistant"
		}

		allToolOnly := len(cl.Payload.Content) > 0
		var textParts []string
		for _, item := range cl.Payload.Content {
			switch item.Type {
			case "input_text", "output_text", "text":
				if strings.TrimSpace(item.Text) != "" {
					textParts = append(textParts, item.Text)
				}
				allToolOnly = false
			case "tool_result", "function_call_output":
				// leaves allToolOnly untouched
			default:
				allToolOnly = false
			}
		}
		r.text = strings.Join(textParts, "\n")
		if r.entryType == "user" {
			r.toolResultOnly = allToolOnly
			r.meta = allToolOnly || isCodexMetaText(r.text)
		}
		return r, nil

	default:
		return r, nil
	}
}

// isCodexMetaText recognizes codex's own injected wrapper/notification
// bodies (environment context, task notifications) the same way claude.go
// recognizes its system-reminder tags.
func isCodexMetaText(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	metaPrefixes := []string{
		"<environment_context>",
		"<task_notification",
		"<user_instructions>",
	}
	for _, p := range metaPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
