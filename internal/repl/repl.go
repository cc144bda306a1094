// Package repl is claodex's REPL Controller (spec.md §4.5): the core event
// loop that turns line-editor input into router sends, collab session
// launches, and idle polling for outstanding responses. It holds no
// terminal/rendering code of its own — internal/replui supplies the Bubble
// Tea line editor (spec.md §6.2) and drives this controller's Submit,
// ToggleTarget, Idle and Halt methods from its Update loop, the way internal/runtui's Model defers agent/loop
// decisions to internal/loop and only renders what it's told.
package repl

import (
	"context"
	"strings"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/clerr"
	"github.com/agusx1211/claodex/internal/collab"
	"github.com/agusx1211/claodex/internal/debug"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/router"
)

// InputEvent is the closed set the line editor (spec.md §6.2) produces.
type InputEvent int

const (
	EventSubmit InputEvent = iota
	EventToggleTarget
	EventIdle
	EventQuit
)

// Mode distinguishes normal-mode sends from an active collab session, per
// spec.md §4.5 ("in collab, enqueue as interjection").
type Mode int

const (
	ModeNormal Mode = iota
	ModeCollab
)

const (
	cmdCollab = "/collab"
	cmdHalt   = "/halt"
	cmdStatus = "/status"
	cmdQuit   = "/quit"
)

// CollabRunner is the subset of *collab.Orchestrator the controller drives.
// Pulled out as an interface so tests can substitute a fake without running
// a real turn loop.
type CollabRunner interface {
	Run(ctx context.Context, req collab.Request, logPath string, halt func() bool) (collab.Result, error)
	Interject(text string)
}

// Controller is the REPL Controller's core state machine. It is driven
// entirely by calls to its methods; it owns no goroutines or timers of its
// own.
type Controller struct {
	r   *router.Router
	co  CollabRunner
	bus *eventbus.Bus

	currentTarget agentid.Agent
	mode          Mode

	haltRequested bool
	postHalt      bool

	exchangeLogDir string
	collabTurns    int
}

// Config configures a new Controller.
type Config struct {
	Router         *router.Router
	Collab         CollabRunner
	Bus            *eventbus.Bus
	InitialTarget  agentid.Agent
	ExchangeLogDir string
	CollabTurns    int
}

// New returns a Controller in normal mode targeting cfg.InitialTarget.
func New(cfg Config) *Controller {
	target := cfg.InitialTarget
	if target == "" {
		target = agentid.Claude
	}
	turns := cfg.CollabTurns
	if turns <= 0 {
		turns = 50
	}
	return &Controller{
		r:              cfg.Router,
		co:             cfg.Collab,
		bus:            cfg.Bus,
		currentTarget:  target,
		mode:           ModeNormal,
		exchangeLogDir: cfg.ExchangeLogDir,
		collabTurns:    turns,
	}
}

// CurrentTarget reports the target the next normal-mode Submit will reach.
func (c *Controller) CurrentTarget() agentid.Agent { return c.currentTarget }

// Mode reports whether a collab session is active.
func (c *Controller) Mode() Mode { return c.mode }

// ToggleTarget flips current_target, per spec.md §4.5. A no-op while a
// collab session owns the turn loop.
func (c *Controller) ToggleTarget() {
	if c.mode == ModeCollab {
		return
	}
	c.currentTarget = c.currentTarget.Peer()
}

// Halt requests termination of any active collab session (Ctrl+C or
// `/halt`), per spec.md §4.4.2. Safe to call from any goroutine; Run's halt
// callback polls haltRequested under no lock because the controller itself
// is single-threaded — only the boolean flip needs to cross goroutines, and
// a bool write/read race here is benign (worst case: one extra poll tick).
func (c *Controller) Halt() {
	c.haltRequested = true
}

// PostHalt reports whether the most recent collab session ended via /halt,
// per spec.md §4.4.5 point 4: Submit prefixes the text of the next
// normal-mode send with "(collab halted by user)\n\n" exactly once.
func (c *Controller) PostHalt() bool {
	return c.postHalt
}

// ConsumePostHalt clears the post-halt flag after the caller has rendered
// the one-shot prefix.
func (c *Controller) ConsumePostHalt() {
	c.postHalt = false
}

// Submit handles a normal-mode line submission: a recognized command, or a
// send to current_target. In collab mode the text is queued as an
// interjection instead (spec.md §4.4.1).
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	if c.mode == ModeCollab {
		c.co.Interject(text)
		return "", nil
	}

	switch strings.TrimSpace(text) {
	case cmdQuit:
		return "", nil
	case cmdHalt:
		c.Halt()
		return "", nil
	case cmdStatus:
		status := c.renderStatus()
		if c.bus != nil {
			_ = c.bus.Log(eventbus.KindStatus, status, "", c.currentTarget, nil)
		}
		return status, nil
	case cmdCollab:
		return c.startCollab(ctx, "", "")
	}

	if c.postHalt {
		text = postHaltPrefix + text
		c.postHalt = false
	}

	_, err := c.r.SendUserMessage(ctx, c.currentTarget, text)
	if err != nil {
		debug.LogKV("repl", "send_user_message failed", "target", c.currentTarget, "err", err)
		return "", err
	}
	return "", nil
}

// postHaltPrefix is prepended exactly once to the next user-facing send
// after a collab session ends via /halt, per spec.md §4.4.5 point 4.
const postHaltPrefix = "(collab halted by user)\n\n"

// Idle is the periodic tick (default 0.5s, spec.md §6.8) that polls every
// target with an outstanding watch. collabStarted reports whether a
// response's [COLLAB] handoff launched a collab session.
func (c *Controller) Idle(ctx context.Context) (collabStarted bool, err error) {
	if c.mode == ModeCollab {
		return false, nil
	}
	for _, target := range agentid.Both {
		resp, done, pollErr := c.r.PollForResponse(target, false)
		if pollErr != nil {
			if clerr.IsPaneDead(pollErr) {
				debug.LogKV("repl", "idle poll: pane dead", "target", target)
				continue
			}
			return false, pollErr
		}
		if !done {
			continue
		}
		if lastNonEmptyLineIsCollab(resp.Text) {
			if _, startErr := c.startCollab(ctx, target, resp.Text); startErr != nil {
				return false, startErr
			}
			return true, nil
		}
	}
	return false, nil
}

// startCollab seeds and runs a collab session. When starter/response are
// empty, it is the user-initiated `/collab` path (the Orchestrator itself
// sends the seed message); otherwise it is the agent-initiated [COLLAB]
// path seeded from an already-known idle-polled response.
func (c *Controller) startCollab(ctx context.Context, starter agentid.Agent, response string) (string, error) {
	c.haltRequested = false
	req := collab.Request{Turns: c.collabTurns}

	if starter == "" {
		req.Starter = c.currentTarget
		req.InitialMessage = "Begin collaborating on the current task."
	} else {
		req.Starter = starter
		req.AgentInitiated = true
		req.StarterResponseText = response
		if ps, ok := c.r.PendingFor(starter); ok {
			req.InitialAnchor = ps.AnchorText
		}
	}

	c.mode = ModeCollab
	defer func() { c.mode = ModeNormal }()

	logPath := c.exchangeLogDir + "/exchange.md"
	result, err := c.co.Run(ctx, req, logPath, func() bool { return c.haltRequested })
	if err != nil {
		return "", err
	}

	c.postHalt = result.PostHalt
	c.haltRequested = false
	debug.LogKV("repl", "collab session ended", "stop_reason", result.StopReason, "turns", result.TurnsCompleted)
	return string(result.StopReason), nil
}

// renderStatus implements `/status` (spec.md §4.5): current target, mode,
// and the pending-watch state for both agents.
func (c *Controller) renderStatus() string {
	var b strings.Builder
	b.WriteString("target=")
	b.WriteString(string(c.currentTarget))
	b.WriteString(" mode=")
	if c.mode == ModeCollab {
		b.WriteString("collab")
	} else {
		b.WriteString("normal")
	}
	for _, target := range agentid.Both {
		b.WriteString(" pending[")
		b.WriteString(string(target))
		b.WriteString("]=")
		if _, ok := c.r.PendingFor(target); ok {
			b.WriteString("yes")
		} else {
			b.WriteString("no")
		}
	}
	return b.String()
}

func lastNonEmptyLineIsCollab(text string) bool {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t == "[COLLAB]"
		}
	}
	return false
}
