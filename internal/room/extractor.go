package room

import (
	"sync"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
)

// Extractor tails both agents' JSONL transcripts and answers the Router's
// questions about room events and turn completion. One Extractor serves a
// whole workspace (both agents); it is safe for concurrent use because the
// only concurrent callers in claodex are the idle poll tick and the main
// routing path, both of which take the same mutex.
type Extractor struct {
	mu      sync.Mutex
	readers map[agentid.Agent]*fileReader

	// stopLatch records a claude Stop-event observed whose boundary-aware
	// extraction came back empty (spec.md §4.1, §8 S5): the latch persists
	// until a later poll finds extractable text past the same anchor.
	stopLatch map[latchKey]time.Time
}

type latchKey struct {
	agent  agentid.Agent
	anchor int
}

// NewExtractor returns an Extractor with no cached state.
func NewExtractor() *Extractor {
	return &Extractor{
		readers:   make(map[agentid.Agent]*fileReader),
		stopLatch: make(map[latchKey]time.Time),
	}
}

func (e *Extractor) readerFor(agent agentid.Agent) *fileReader {
	fr, ok := e.readers[agent]
	if !ok {
		var parse parseFunc
		if agent == agentid.Claude {
			parse = parseClaudeRow
		} else {
			parse = parseCodexRow
		}
		fr = newFileReader(parse)
		e.readers[agent] = fr
	}
	return fr
}

// RefreshResult is the outcome of tailing one agent's JSONL file.
type RefreshResult struct {
	NewReadCursor int
	Warning       string // non-empty iff a stuck line was skipped this call
}

// RefreshSource reads agent's JSONL file from its last-seen position to
// EOF, returning the new read cursor. Partial-write tails are deferred;
// stuck lines are skipped with a warning (spec.md §4.1).
func (e *Extractor) RefreshSource(agent agentid.Agent, path string) (RefreshResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fr := e.readerFor(agent)
	cursor, err := fr.refresh(path)
	if err != nil {
		return RefreshResult{NewReadCursor: cursor}, err
	}
	return RefreshResult{NewReadCursor: cursor, Warning: fr.takeWarning()}, nil
}

// EventsBetween returns events whose source line is in (lo, hi].
func (e *Extractor) EventsBetween(agent agentid.Agent, lo, hi int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return extractEvents(e.readerFor(agent).rowsBetween(lo, hi), lo)
}

// extractEvents implements spec.md §4.1's per-turn extraction: every
// non-meta user row is emitted individually, preceded by the last non-empty
// assistant frame seen since the previous boundary; a meta user row emits
// nothing and discards the pending assistant frame.
func extractEvents(rows []row, lo int) []Event {
	var events []Event
	var pendingText string
	var pendingLine int

	flush := func() {
		if pendingText != "" {
			events = append(events, Event{Kind: KindAssistantText, Text: pendingText, Line: pendingLine})
		}
		pendingText = ""
		pendingLine = 0
	}

	for i, r := range rows {
		line := lo + 1 + i
		if r.isUserBoundary() {
			if r.meta {
				pendingText = ""
				pendingLine = 0
				continue
			}
			flush()
			if r.isEmittableUserText() {
				events = append(events, Event{Kind: KindUserText, Text: r.text, Line: line})
			}
			continue
		}
		if r.isEmittableAssistantText() {
			pendingText = r.text
			pendingLine = line
		}
	}
	flush()
	return events
}

// LatestAssistantBetween returns the last non-empty assistant text in
// (lo, hi], ignoring user boundaries entirely (the fast-path variant).
func (e *Extractor) LatestAssistantBetween(agent agentid.Agent, lo, hi int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.readerFor(agent).rowsBetween(lo, hi)
	var latest string
	for _, r := range rows {
		if r.isEmittableAssistantText() {
			latest = r.text
		}
	}
	if latest == "" {
		return "", false
	}
	return latest, true
}

// LatestAssistantSinceLastUserBoundary implements the boundary-aware
// extraction the Stop-event fallback depends on: every user-role row
// (including meta and tool-result-only rows) resets the accumulator. Only
// an assistant frame strictly after the latest such boundary is returned.
func (e *Extractor) LatestAssistantSinceLastUserBoundary(agent agentid.Agent, lo, hi int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.readerFor(agent).rowsBetween(lo, hi)
	var acc string
	for _, r := range rows {
		if r.isUserBoundary() {
			acc = ""
			continue
		}
		if r.isEmittableAssistantText() {
			acc = r.text
		}
	}
	if acc == "" {
		return "", false
	}
	return acc, true
}

// CodexTurnComplete scans (anchor, hi] for a task_complete marker. If a
// task_started marker also appears in the window, a task_complete must
// follow it (prevents matching a stale marker from a previous turn).
func (e *Extractor) CodexTurnComplete(anchor, hi int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.readerFor(agentid.Codex).rowsBetween(anchor, hi)

	lastStarted := -1
	for i, r := range rows {
		if r.turnMarker == "task_started" {
			lastStarted = i
		}
	}
	for i, r := range rows {
		if r.turnMarker != "task_complete" {
			continue
		}
		if lastStarted < 0 || i > lastStarted {
			return true
		}
	}
	return false
}

// ClaudeFastPathComplete scans (anchor, hi] for the turn_duration marker.
func (e *Extractor) ClaudeFastPathComplete(anchor, hi int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.readerFor(agentid.Claude).rowsBetween(anchor, hi)
	for _, r := range rows {
		if r.turnMarker == "turn_duration" {
			return true
		}
	}
	return false
}

// Interference reports whether a non-echoed, non-meta user row appeared in
// target's JSONL after anchor, excluding the row whose normalized body
// equals echoedAnchor (the router's own injected payload being echoed back
// by the terminal). Claude-only per spec.md §4.1.
func (e *Extractor) Interference(agent agentid.Agent, anchor, hi int, echoedAnchor string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.readerFor(agent).rowsBetween(anchor, hi)
	normalizedEcho := NormalizeAnchor(echoedAnchor)
	echoConsumed := false
	for _, r := range rows {
		if !r.isUserBoundary() || r.meta {
			continue
		}
		if !echoConsumed && normalizedEcho != "" && NormalizeAnchor(r.text) == normalizedEcho {
			echoConsumed = true
			continue
		}
		return true
	}
	return false
}

// StopLatched records that a Stop event was observed for (agent, anchor)
// but boundary-aware extraction came back empty, per spec.md §8 S5.
func (e *Extractor) StopLatched(agent agentid.Agent, anchor int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.stopLatch[latchKey{agent, anchor}]
	return ok
}

func (e *Extractor) SetStopLatch(agent agentid.Agent, anchor int, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLatch[latchKey{agent, anchor}] = at
}

func (e *Extractor) ClearStopLatch(agent agentid.Agent, anchor int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.stopLatch, latchKey{agent, anchor})
}
