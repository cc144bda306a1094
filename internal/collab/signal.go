package collab

import "strings"

// Collab signal lines, recognized only when they are the sole content of
// the last non-empty line of a response (spec.md §4.4.3, §9).
const (
	signalCollab    = "[COLLAB]"
	signalConverged = "[CONVERGED]"
)

// lastNonEmptyLine returns the last line of text with non-whitespace
// content, trimmed, or "" if text is entirely blank.
func lastNonEmptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return ""
}

func hasTrailingSignal(text, signal string) bool {
	return lastNonEmptyLine(text) == signal
}

// stripTrailingSignal removes the last non-empty line of text if it equals
// signal, along with any trailing blank lines, and returns what remains.
func stripTrailingSignal(text, signal string) string {
	if !hasTrailingSignal(text, signal) {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines) - 1
	for end >= 0 && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	// end now indexes the signal line itself; drop it and any blank lines
	// that followed it, then drop further trailing blank lines.
	lines = lines[:end]
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// stripAllSignals removes a trailing [COLLAB] and/or [CONVERGED] line,
// for the exchange log transcript (spec.md §6.7: "Collab signals... are
// stripped from transcripted bodies").
func stripAllSignals(text string) string {
	for _, s := range []string{signalCollab, signalConverged} {
		text = stripTrailingSignal(text, s)
	}
	return text
}
