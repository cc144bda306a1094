// Package collab is claodex's Collab Orchestrator (spec.md §4.4): the
// cooperative turn loop that routes responses between the two agents,
// handles user interjections and convergence, and runs the single cleanup
// exit path on any termination trigger.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/clerr"
	"github.com/agusx1211/claodex/internal/debug"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/router"
)

// StopReason is one of the fixed termination triggers of spec.md §4.4.4.
type StopReason string

const (
	StopConverged    StopReason = "converged"
	StopTurnsReached StopReason = "turns_reached"
	StopUserHalt     StopReason = "user_halt"
	StopTimeout      StopReason = "timeout"
	StopInterference StopReason = "interference"
	StopPaneDead     StopReason = "pane_dead"
	StopError        StopReason = "error"
)

// Request seeds a collab session, per spec.md §4.4: either user-initiated
// (InitialMessage is sent to Starter) or agent-initiated (the [COLLAB]
// path: StarterResponseText and InitialAnchor are already known from a
// prior normal-mode PendingSend).
type Request struct {
	Turns               int
	Starter             agentid.Agent
	AgentInitiated      bool
	InitialMessage      string // user-initiated path
	StarterResponseText string // agent-initiated path: the response that triggered [COLLAB]
	InitialAnchor       string // agent-initiated path: the PendingSend's anchor text
}

// Result is the outcome of one Run call.
type Result struct {
	StopReason                StopReason
	TurnsCompleted            int
	LastUnroutedResponseAgent agentid.Agent
	PostHalt                  bool
}

// Orchestrator runs the collab loop over a Router. One Orchestrator serves
// one collab session; callers construct a fresh one per session.
type Orchestrator struct {
	r           *router.Router
	bus         *eventbus.Bus
	turnTimeout time.Duration

	interjectionsNext []string
}

// New returns an Orchestrator wired to r. bus may be nil.
func New(r *router.Router, bus *eventbus.Bus, turnTimeout time.Duration) *Orchestrator {
	return &Orchestrator{r: r, bus: bus, turnTimeout: turnTimeout}
}

// Interject enqueues a user submit made during an active collab session,
// per spec.md §4.4.1. Safe to call from the REPL's input goroutine while
// Run is in progress; interjectionsNext is only read at drain points which
// happen on the same goroutine as Run, so callers must serialize their own
// access to Interject (no internal locking — claodex funnels all REPL
// input through one goroutine).
func (o *Orchestrator) Interject(text string) {
	o.interjectionsNext = append(o.interjectionsNext, text)
}

func (o *Orchestrator) drainInterjections() []string {
	drained := o.interjectionsNext
	o.interjectionsNext = nil
	return drained
}

// updateMetrics merges fn's effect into the bus's metrics snapshot, so
// `claodex status` reflects whether a collab session is active and how
// many turns it has completed. No-op if bus is nil.
func (o *Orchestrator) updateMetrics(fn func(*eventbus.MetricsSnapshot)) {
	if o.bus == nil {
		return
	}
	_ = o.bus.UpdateMetrics(fn)
}

// Run executes the full collab loop per spec.md §4.4, writing to log at
// logPath, until a termination trigger fires. halt reports whether the
// user has requested a halt (Ctrl+C or /halt); it is polled, never
// blocked on.
func (o *Orchestrator) Run(ctx context.Context, req Request, logPath string, halt func() bool) (Result, error) {
	log, err := NewExchangeLog(logPath)
	if err != nil {
		return Result{}, err
	}

	o.updateMetrics(func(m *eventbus.MetricsSnapshot) {
		m.CollabActive = true
		m.CollabTurns = 0
	})

	var (
		stopReason      StopReason
		turnsDone       int
		lastUnrouted    agentid.Agent
		pendingConverge agentid.Agent
		replayedLast    []string
		firstRoute      = true
		respText        string
		respAgent       agentid.Agent
	)

	fail := func(reason StopReason) {
		stopReason = reason
	}

	if !req.AgentInitiated {
		blocks, err := o.r.SendUserMessage(ctx, req.Starter, req.InitialMessage)
		if err != nil {
			fail(classifySendErr(err))
		} else {
			req.InitialAnchor = lastUserBlockAnchor(blocks)
			resp, waitErr := o.r.WaitForResponse(req.Starter, time.Now().Add(o.turnTimeout), halt, false)
			if waitErr != nil {
				fail(classifyWaitErr(waitErr, halt()))
			} else {
				respText, respAgent = resp.Text, req.Starter
			}
		}
	} else {
		respText, respAgent = req.StarterResponseText, req.Starter
	}

	for stopReason == "" && turnsDone < req.Turns {
		if halt() {
			lastUnrouted = respAgent
			stopReason = StopUserHalt
			break
		}

		A := respAgent
		B := A.Peer()
		lastUnrouted = A

		aConverged := hasTrailingSignal(respText, signalConverged)
		stripped := stripTrailingSignal(respText, signalCollab)

		drained := o.drainInterjections()
		interjections := append(append([]string{}, replayedLast...), drained...)

		echoAnchor := ""
		if firstRoute {
			echoAnchor = req.InitialAnchor
		}

		blocks, err := o.r.SendRoutedMessage(ctx, B, A, stripped, interjections, echoAnchor)
		if err != nil {
			stopReason = classifySendErr(err)
			break
		}
		_ = blocks
		firstRoute = false
		lastUnrouted = ""
		replayedLast = drained
		if logErr := log.Append(A, stripped, time.Now()); logErr != nil && o.bus != nil {
			_ = o.bus.Log(eventbus.KindError, "exchange log append failed: "+logErr.Error(), A, "", nil)
		}

		if aConverged {
			if pendingConverge == B {
				stopReason = StopConverged
				break
			}
			pendingConverge = A
			debug.LogKV("collab", "convergence signal", "agent", A, "pending_converge", pendingConverge)
		} else {
			pendingConverge = ""
		}

		if halt() {
			stopReason = StopUserHalt
			break
		}

		resp, err := o.r.WaitForResponse(B, time.Now().Add(o.turnTimeout), halt, true)
		if err != nil {
			stopReason = classifyWaitErr(err, halt())
			break
		}
		turnsDone++
		respText, respAgent = resp.Text, B
		o.updateMetrics(func(m *eventbus.MetricsSnapshot) { m.CollabTurns = turnsDone })

		if turnsDone >= req.Turns {
			stopReason = StopTurnsReached
		}
	}

	debug.LogKV("collab", "run loop exited", "stop_reason", stopReason, "turns_done", turnsDone)
	return o.cleanup(stopReason, turnsDone, lastUnrouted, log)
}

func (o *Orchestrator) cleanup(stopReason StopReason, turnsDone int, lastUnrouted agentid.Agent, log *ExchangeLog) (Result, error) {
	scope := syncScope(stopReason, lastUnrouted)
	if err := o.r.SyncDeliveryCursors(scope...); err != nil && o.bus != nil {
		_ = o.bus.Log(eventbus.KindError, "sync_delivery_cursors failed: "+err.Error(), "", "", nil)
	}

	if err := log.Close(turnsDone, string(stopReason)); err != nil && o.bus != nil {
		_ = o.bus.Log(eventbus.KindError, "exchange log close failed: "+err.Error(), "", "", nil)
	}

	if o.bus != nil {
		_ = o.bus.Log(eventbus.KindCollab, "collab terminated", "", "", map[string]any{
			"stop_reason":     string(stopReason),
			"turns_completed": turnsDone,
		})
	}
	o.updateMetrics(func(m *eventbus.MetricsSnapshot) {
		m.CollabActive = false
		m.CollabTurns = turnsDone
		m.LastStopReason = string(stopReason)
	})

	return Result{
		StopReason:                stopReason,
		TurnsCompleted:            turnsDone,
		LastUnroutedResponseAgent: lastUnrouted,
		PostHalt:                  stopReason == StopUserHalt,
	}, nil
}

// syncScope implements spec.md §4.4.4's sync-scope column: every trigger
// syncs both agents except a /halt with an unrouted response, which syncs
// only the agent whose response was left unrouted (i.e. both except
// peer(lastUnrouted)).
func syncScope(stopReason StopReason, lastUnrouted agentid.Agent) []agentid.Agent {
	if stopReason == StopUserHalt && lastUnrouted != "" {
		return []agentid.Agent{lastUnrouted}
	}
	return nil
}

func classifySendErr(err error) StopReason {
	var injectErr *clerr.InjectFailed
	switch {
	case clerr.IsPaneDead(err), errors.As(err, &injectErr):
		return StopPaneDead
	default:
		return StopError
	}
}

func classifyWaitErr(err error, halted bool) StopReason {
	if halted {
		return StopUserHalt
	}
	switch {
	case clerr.IsPaneDead(err):
		return StopPaneDead
	case clerr.IsInterference(err):
		return StopInterference
	case clerr.IsSmokeSignal(err):
		return StopTimeout
	default:
		return StopError
	}
}

func lastUserBlockAnchor(blocks []router.Block) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Source == "user" {
			return blocks[i].Text
		}
	}
	return ""
}
