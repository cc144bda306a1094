package room

import (
	"strings"
	"time"
)

// row is the agent-neutral shape every per-agent JSON line is normalized
// into before the shared extraction logic (boundary tracking, turn-end
// scanning, meta classification) runs over it. Claude and codex use
// unrelated wire schemas (see claude.go / codex.go); row is the seam.
type row struct {
	// entryType/role mirror spec.md's "entry_type = user, role = user"
	// language: entryType is "user", "assistant", or "system"; role is set
	// for user/assistant entries.
	entryType string
	role      string

	// text is the extracted textual content for user/assistant rows.
	// Empty for non-text rows (turn markers, tool calls).
	text string

	// meta rows are user-role rows that are not the human's own words:
	// system reminders, command wrappers, task notifications, and
	// tool-result-only rows. They reset turn-boundary tracking the same as
	// a genuine user message but are never emitted as UserText.
	meta bool

	// toolResultOnly marks a user-role row whose content is entirely tool
	// results (a strict subset of meta, kept distinct for diagnostics).
	toolResultOnly bool

	// turnMarker is non-empty when this row itself is a turn-end/turn-start
	// signal: "task_started", "task_complete" (codex) or "turn_duration"
	// (claude fast path).
	turnMarker string

	timestamp time.Time
}

func (r row) isUserBoundary() bool {
	return r.entryType == "user" && r.role == "user"
}

func (r row) isEmittableUserText() bool {
	return r.isUserBoundary() && !r.meta && strings.TrimSpace(r.text) != ""
}

func (r row) isEmittableAssistantText() bool {
	return r.entryType == "assistant" && r.role == "assistant" && strings.TrimSpace(r.text) != ""
}
