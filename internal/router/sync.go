package router

import "github.com/agusx1211/claodex/internal/agentid"

// SyncDeliveryCursors implements spec.md §4.3.5: for each target, set
// delivery[target] = read[peer(target)]. With no targets given, both
// agents are synced. Used by the collab orchestrator on termination to
// absorb trailing content that was not routed.
func (r *Router) SyncDeliveryCursors(targets ...agentid.Agent) error {
	if len(targets) == 0 {
		targets = agentid.Both[:]
	}
	for _, target := range targets {
		peerCursor, err := r.cs.ReadCursor(target.Peer())
		if err != nil {
			return err
		}
		if err := r.cs.AdvanceDelivery(target, peerCursor); err != nil {
			return err
		}
	}
	return nil
}
