package router

import (
	"context"
	"sync"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/cursorstore"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/room"
)

// Injector is the paste/liveness primitive the Router consumes, per
// spec.md §6.1. internal/pane implements it over a real pty; tests use a
// fake.
type Injector interface {
	Paste(ctx context.Context, target agentid.Agent, payload string) error
	PaneAlive(target agentid.Agent) bool
}

// Config holds the environment-configurable knobs of spec.md §6.8 that the
// Router itself needs.
type Config struct {
	PollInterval   time.Duration
	TurnTimeout    time.Duration
	ClaudeDebugDir string
}

// Router composes deltas, performs sends, and runs the turn-end wait/poll
// loop over one workspace's two agents.
type Router struct {
	cs  *cursorstore.Store
	ex  *room.Extractor
	inj Injector
	bus *eventbus.Bus
	cfg Config

	mu      sync.Mutex
	pending map[agentid.Agent]*PendingSend
}

// New returns a Router wired to its collaborators. cs, ex, and inj must be
// non-nil; bus may be nil in tests that don't care about the event log.
func New(cs *cursorstore.Store, ex *room.Extractor, inj Injector, bus *eventbus.Bus, cfg Config) *Router {
	return &Router{
		cs:      cs,
		ex:      ex,
		inj:     inj,
		bus:     bus,
		cfg:     cfg,
		pending: make(map[agentid.Agent]*PendingSend),
	}
}

// sessionPath returns the JSONL transcript path registered for agent.
func (r *Router) sessionPath(agent agentid.Agent) (string, error) {
	p, _, err := r.cs.LoadParticipant(agent)
	if err != nil {
		return "", err
	}
	return p.SessionFile, nil
}

func (r *Router) logEvent(kind eventbus.Kind, message string, agent, target agentid.Agent) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Log(kind, message, agent, target, nil)
}

// updateMetrics merges fn's effect into the bus's metrics snapshot, so
// `claodex status` and internal/statusweb see live cursors, pending
// watches, and sent/recv counts rather than the zero-value snapshot
// written once at eventbus.New. No-op if bus is nil.
func (r *Router) updateMetrics(fn func(*eventbus.MetricsSnapshot)) {
	if r.bus == nil {
		return
	}
	_ = r.bus.UpdateMetrics(fn)
}
