package router

import (
	"context"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/clerr"
	"github.com/agusx1211/claodex/internal/debug"
	"github.com/agusx1211/claodex/internal/eventbus"
)

// refreshOwnAnchor refreshes target's own JSONL (so its read cursor is
// current) and returns that cursor as the lower bound of the next
// wait/poll scan window, per spec.md §4.3.3 ("read[target] at send time").
func (r *Router) refreshOwnAnchor(target agentid.Agent) (int, error) {
	path, err := r.sessionPath(target)
	if err != nil {
		return 0, err
	}
	refresh, err := r.ex.RefreshSource(target, path)
	if err != nil {
		return 0, err
	}
	if refresh.Warning != "" {
		r.logEvent("error", "parse_stall: "+refresh.Warning, target, "")
	}
	if err := r.cs.AdvanceReadCursor(target, refresh.NewReadCursor); err != nil {
		return 0, err
	}
	return refresh.NewReadCursor, nil
}

func (r *Router) paste(ctx context.Context, target agentid.Agent, blocks []Block) error {
	if !r.inj.PaneAlive(target) {
		return &clerr.PaneDead{Target: target}
	}
	if err := r.inj.Paste(ctx, target, RenderPayload(blocks)); err != nil {
		return &clerr.InjectFailed{Target: target, Cause: err}
	}
	return nil
}

// SendUserMessage implements spec.md §4.3.2's send_user_message: a normal
// REPL send with no echo anchor (the user typed this themselves, it did
// not come from a previous injection).
func (r *Router) SendUserMessage(ctx context.Context, target agentid.Agent, userText string) ([]Block, error) {
	blocks, deltaCursor, err := r.BuildDeltaForTarget(target, "")
	if err != nil {
		return nil, err
	}
	blocks = append(blocks, Block{Source: sourceUser, Text: userText})

	anchorCursor, err := r.refreshOwnAnchor(target)
	if err != nil {
		return nil, err
	}

	if err := r.paste(ctx, target, blocks); err != nil {
		return nil, err
	}
	if err := r.cs.AdvanceDelivery(target, deltaCursor); err != nil {
		return nil, err
	}
	r.createOrReplaceWatch(target, blocks, anchorCursor, deltaCursor)
	r.logEvent("sent", "user message", sourceAgent(target), target)
	r.updateMetrics(func(m *eventbus.MetricsSnapshot) {
		m.TotalSent++
		m.PendingWatches[string(target)] = true
		m.ReadCursor[string(target)] = anchorCursor
		m.DeliveryCursor[string(target)] = deltaCursor
	})
	debug.LogKV("router", "send_user_message", "target", target, "anchor_cursor", anchorCursor, "delta_cursor", deltaCursor)
	return blocks, nil
}

// SendRoutedMessage implements spec.md §4.3.2's send_routed_message: a
// collab-routing send (or an agent-initiated [COLLAB] handoff). Delta
// AssistantText blocks from sourceAgent are dropped since response_text
// already conveys them; interjections (typed during the turn) are appended
// in chronological order, then the source agent's response itself.
func (r *Router) SendRoutedMessage(ctx context.Context, target, sourceAgentID agentid.Agent, responseText string, interjections []string, echoedAnchor string) ([]Block, error) {
	blocks, deltaCursor, err := r.BuildDeltaForTarget(target, echoedAnchor)
	if err != nil {
		return nil, err
	}

	filtered := blocks[:0:0]
	for _, b := range blocks {
		if b.Source == string(sourceAgentID) {
			continue
		}
		filtered = append(filtered, b)
	}
	for _, text := range interjections {
		filtered = append(filtered, Block{Source: sourceUser, Text: text})
	}
	filtered = append(filtered, Block{Source: string(sourceAgentID), Text: responseText})

	anchorCursor, err := r.refreshOwnAnchor(target)
	if err != nil {
		return nil, err
	}

	if err := r.paste(ctx, target, filtered); err != nil {
		return nil, err
	}
	if err := r.cs.AdvanceDelivery(target, deltaCursor); err != nil {
		return nil, err
	}
	r.createOrReplaceWatch(target, filtered, anchorCursor, deltaCursor)
	r.logEvent("sent", "routed message", sourceAgentID, target)
	r.updateMetrics(func(m *eventbus.MetricsSnapshot) {
		m.TotalSent++
		m.PendingWatches[string(target)] = true
		m.ReadCursor[string(target)] = anchorCursor
		m.DeliveryCursor[string(target)] = deltaCursor
	})
	debug.LogKV("router", "send_routed_message", "source", sourceAgentID, "target", target, "interjections", len(interjections))
	return filtered, nil
}

func sourceAgent(target agentid.Agent) agentid.Agent {
	return target.Peer()
}
