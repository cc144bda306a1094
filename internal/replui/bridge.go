// Package replui is claodex's reference line editor and renderer (spec.md
// §6.2): a Bubble Tea program that turns keystrokes into the InputEvent
// stream internal/repl.Controller consumes, and renders scrollback plus a
// target indicator. internal/runtui/run.go bridges a long-running agent
// loop into Bubble Tea with a buffered channel and a waitForEvent Cmd;
// replui.bridge follows the same shape, except the thing
// running on its own goroutine is the REPL Controller's "orchestrator
// thread" (spec.md §5: submit/idle work, and any collab session it starts,
// run single-threaded on one goroutine — never on the UI goroutine).
package replui

import (
	"context"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/eventq"
	"github.com/agusx1211/claodex/internal/repl"
)

// coreEvent is sent from the UI goroutine to the bridge goroutine.
type coreEvent struct {
	kind repl.InputEvent
	text string
}

// StateMsg is a snapshot of the controller's externally-visible state,
// delivered to the Bubble Tea Update loop after each coreEvent is
// processed. It is a tea.Msg (an opaque `any`) by construction; replui
// never imports bubbletea into this file so bridge.go stays testable
// without a terminal.
type StateMsg struct {
	Target   agentid.Agent
	Mode     repl.Mode
	PostHalt bool
	Line     string // a line to append to scrollback, or "" for none
	Err      error
	Quit     bool
}

// bridge owns the repl.Controller and runs its event loop on one
// goroutine, per spec.md §5's single-threaded-core requirement.
type bridge struct {
	ctrl   *repl.Controller
	in     chan coreEvent
	out    chan StateMsg
	ctx    context.Context
	cancel context.CancelFunc

	// postHaltAnnounced tracks whether the one-shot scrollback notice for
	// the controller's current post-halt state has already been sent, so
	// it fires once right after a collab session halts rather than on
	// every subsequent idle tick. It resets once Submit actually consumes
	// the flag (spec.md §4.4.5 point 4), prepending it to the real send.
	postHaltAnnounced bool
}

func newBridge(ctrl *repl.Controller) *bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &bridge{
		ctrl:   ctrl,
		in:     make(chan coreEvent, 8),
		out:    make(chan StateMsg, 8),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.run()
	return b
}

func (b *bridge) run() {
	for ev := range b.in {
		var line string
		var err error

		switch ev.kind {
		case repl.EventSubmit:
			line, err = b.ctrl.Submit(b.ctx, ev.text)
		case repl.EventToggleTarget:
			b.ctrl.ToggleTarget()
		case repl.EventIdle:
			_, err = b.ctrl.Idle(b.ctx)
		case repl.EventQuit:
			b.cancel()
			b.out <- StateMsg{Target: b.ctrl.CurrentTarget(), Mode: b.ctrl.Mode(), Quit: true}
			return
		}

		postHalt := b.ctrl.PostHalt()
		announce := postHalt && !b.postHaltAnnounced
		b.postHaltAnnounced = postHalt

		msg := StateMsg{
			Target:   b.ctrl.CurrentTarget(),
			Mode:     b.ctrl.Mode(),
			PostHalt: announce,
			Line:     line,
			Err:      err,
		}
		b.out <- msg
	}
}

// send enqueues ev for the bridge goroutine. Never blocks the caller beyond
// the channel's buffer: the UI goroutine must stay responsive to repaint
// and to a halt keystroke even while the core is mid-collab.
func (b *bridge) send(ev coreEvent) {
	// Core goroutine is backed up (e.g. inside a long collab run); drop
	// rather than block the UI. Submit/toggle presses during an active
	// collab either enqueue as interjections or no-op, so a dropped
	// keystroke here is, at worst, a request the user can repeat.
	eventq.Offer(b.in, ev)
}

// halt is the one operation that must reach the controller even while the
// bridge goroutine is blocked inside a collab Run call: it flips an atomic
// flag repl.Controller.Halt polls from its own goroutine-safe path, per
// spec.md §5's halt-listener description ("sets the atomic halt_requested
// flag and returns. No other work is performed there").
func (b *bridge) halt() {
	b.ctrl.Halt()
}

func (b *bridge) waitState() StateMsg {
	return <-b.out
}
