package router

import (
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/clerr"
	"github.com/agusx1211/claodex/internal/debug"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/room"
)

// Response is the result of a completed turn-end wait/poll.
type Response struct {
	Text       string
	DetectedAt time.Time
}

// WaitForResponse implements spec.md §4.3.4's blocking wait: it polls at
// cfg.PollInterval until deadline, a value arrives, an error condition
// fires, or haltSignal reports true. interferenceAbort gates the claude
// interference check (only meaningful during a collab wait).
func (r *Router) WaitForResponse(target agentid.Agent, deadline time.Time, haltSignal func() bool, interferenceAbort bool) (Response, error) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if haltSignal != nil && haltSignal() {
			return Response{}, &clerr.SmokeSignal{Target: target}
		}
		resp, done, err := r.PollForResponse(target, interferenceAbort)
		if err != nil {
			return Response{}, err
		}
		if done {
			return *resp, nil
		}
		if !time.Now().Before(deadline) {
			return Response{}, &clerr.SmokeSignal{Target: target}
		}
		<-ticker.C
	}
}

// PollForResponse implements spec.md §4.3.4's non-blocking poll: a single
// check of target's turn-end predicates against its outstanding watch.
// Returns (nil, false, nil) if nothing has resolved yet.
func (r *Router) PollForResponse(target agentid.Agent, interferenceAbort bool) (*Response, bool, error) {
	if !r.inj.PaneAlive(target) {
		return nil, false, &clerr.PaneDead{Target: target}
	}

	ps, ok := r.PendingFor(target)
	if !ok {
		return nil, false, nil
	}

	hi, err := r.refreshOwnAnchor(target)
	if err != nil {
		return nil, false, err
	}

	if interferenceAbort && target == agentid.Claude {
		if r.ex.Interference(target, ps.AnchorCursor, hi, ps.AnchorText) {
			return nil, false, &clerr.Interference{Target: target}
		}
	}

	var text string
	var detectedAt time.Time
	var complete bool

	switch target {
	case agentid.Codex:
		if r.ex.CodexTurnComplete(ps.AnchorCursor, hi) {
			if t, found := r.ex.LatestAssistantBetween(target, ps.AnchorCursor, hi); found {
				text, detectedAt, complete = t, time.Now(), true
			} else {
				return nil, false, &clerr.SmokeSignal{Target: target}
			}
		}
	case agentid.Claude:
		if r.ex.ClaudeFastPathComplete(ps.AnchorCursor, hi) {
			if t, found := r.ex.LatestAssistantBetween(target, ps.AnchorCursor, hi); found {
				text, detectedAt, complete = t, time.Now(), true
			} else {
				return nil, false, &clerr.SmokeSignal{Target: target}
			}
			break
		}
		resolved, stopAt, err := r.pollClaudeStopEventFallback(target, ps, hi)
		if err != nil {
			return nil, false, err
		}
		if resolved != "" {
			text, detectedAt, complete = resolved, stopAt, true
		}
	}

	if !complete {
		return nil, false, nil
	}

	r.ex.ClearStopLatch(target, ps.AnchorCursor)
	r.resolveWatch(target)
	r.logEvent("recv", "turn complete", target, "")
	r.updateMetrics(func(m *eventbus.MetricsSnapshot) {
		m.TotalReceived++
		m.PendingWatches[string(target)] = false
		m.ReadCursor[string(target)] = hi
	})
	debug.LogKV("router", "turn complete", "target", target, "anchor_cursor", ps.AnchorCursor, "hi", hi)
	return &Response{Text: text, DetectedAt: detectedAt}, true, nil
}

// pollClaudeStopEventFallback implements the stop-event fallback path of
// spec.md §4.1/§4.3.4: find a Stop event in the debug log strictly after
// sent_at, then attempt boundary-aware extraction. If a Stop event was
// found but extraction is still empty, the latch is set (or left set) and
// polling continues; no error is raised — this is the §8 S5 scenario.
func (r *Router) pollClaudeStopEventFallback(target agentid.Agent, ps PendingSend, hi int) (string, time.Time, error) {
	p, _, err := r.cs.LoadParticipant(target)
	if err != nil {
		return "", time.Time{}, err
	}
	debugPath := room.DebugLogPath(r.cfg.ClaudeDebugDir, p.SessionID)

	found, at, err := room.LatestStopEventAfter(debugPath, ps.SentAt)
	if err != nil {
		return "", time.Time{}, err
	}
	if !found {
		if r.ex.StopLatched(target, ps.AnchorCursor) {
			if text, ok := r.ex.LatestAssistantSinceLastUserBoundary(target, ps.AnchorCursor, hi); ok {
				return text, time.Now(), nil
			}
		}
		return "", time.Time{}, nil
	}

	if text, ok := r.ex.LatestAssistantSinceLastUserBoundary(target, ps.AnchorCursor, hi); ok {
		return text, at, nil
	}
	r.ex.SetStopLatch(target, ps.AnchorCursor, at)
	return "", time.Time{}, nil
}
