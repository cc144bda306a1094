package router

import (
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
)

// PendingSend is the Router's outstanding expectation that target will
// respond, per spec.md §4.3.3.
type PendingSend struct {
	Target               agentid.Agent
	SentAt               time.Time
	AnchorCursor         int    // read[target] at send time: the wait/poll window's lower bound
	PeerReadCursorAtSend int    // the delta cursor used for this send (= read[peer(target)] at send time)
	AnchorText           string // normalized trailing "user" block of the composed payload
	Blocks               []Block
	resolved             bool
}

// createOrReplaceWatch implements spec.md §4.3.3's replacement rule: a new
// send to a target with an unresolved watch inherits the earliest sent_at
// and concatenates blocks for exchange-log fidelity. Any stop-event latch
// tied to the replaced watch is cleared since the new anchor_cursor makes
// it stale.
func (r *Router) createOrReplaceWatch(target agentid.Agent, blocks []Block, anchorCursor, peerReadCursorAtSend int) *PendingSend {
	r.mu.Lock()
	defer r.mu.Unlock()

	sentAt := time.Now()
	merged := blocks
	if prev, ok := r.pending[target]; ok && !prev.resolved {
		sentAt = prev.SentAt
		merged = append(append([]Block{}, prev.Blocks...), blocks...)
		r.ex.ClearStopLatch(target, prev.AnchorCursor)
	}

	ps := &PendingSend{
		Target:               target,
		SentAt:               sentAt,
		AnchorCursor:         anchorCursor,
		PeerReadCursorAtSend: peerReadCursorAtSend,
		AnchorText:           lastUserBlockText(merged),
		Blocks:               merged,
	}
	r.pending[target] = ps
	return ps
}

// PendingFor returns the current watch for target, if any.
func (r *Router) PendingFor(target agentid.Agent) (PendingSend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.pending[target]
	if !ok {
		return PendingSend{}, false
	}
	return *ps, true
}

func (r *Router) resolveWatch(target agentid.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ps, ok := r.pending[target]; ok {
		ps.resolved = true
	}
}
