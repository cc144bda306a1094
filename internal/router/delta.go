package router

import (
	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/debug"
	"github.com/agusx1211/claodex/internal/room"
)

// BuildDeltaForTarget implements spec.md §4.3.1: refresh peer(target)'s
// JSONL, collect everything since delivery[target], render it as blocks
// (applying header hygiene and, if echoedAnchor is non-empty, first-match
// echo dedup), and return the proposed new delivery cursor.
func (r *Router) BuildDeltaForTarget(target agentid.Agent, echoedAnchor string) ([]Block, int, error) {
	src := target.Peer()

	srcPath, err := r.sessionPath(src)
	if err != nil {
		return nil, 0, err
	}
	refresh, err := r.ex.RefreshSource(src, srcPath)
	if err != nil {
		return nil, 0, err
	}
	if refresh.Warning != "" {
		r.logEvent("error", "parse_stall: "+refresh.Warning, src, "")
	}
	if err := r.cs.AdvanceReadCursor(src, refresh.NewReadCursor); err != nil {
		return nil, 0, err
	}

	deliveryCursor, err := r.cs.ReadDelivery(target)
	if err != nil {
		return nil, 0, err
	}

	events := r.ex.EventsBetween(src, deliveryCursor, refresh.NewReadCursor)
	normalizedEcho := room.NormalizeAnchor(echoedAnchor)
	echoConsumed := false

	var blocks []Block
	for _, ev := range events {
		switch ev.Kind {
		case room.KindUserText:
			text := stripInjectedContext(ev.Text)
			if echoedAnchor != "" && !echoConsumed && room.NormalizeAnchor(text) == normalizedEcho {
				echoConsumed = true
				continue
			}
			blocks = append(blocks, Block{Source: sourceUser, Text: text})
		case room.KindAssistantText:
			blocks = append(blocks, Block{Source: string(src), Text: ev.Text})
		}
	}

	debug.LogKV("router", "built delta", "target", target, "src", src, "delivery_cursor", deliveryCursor, "new_read_cursor", refresh.NewReadCursor, "blocks", len(blocks))
	return blocks, refresh.NewReadCursor, nil
}
