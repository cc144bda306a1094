package repl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/collab"
	"github.com/agusx1211/claodex/internal/cursorstore"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/room"
	"github.com/agusx1211/claodex/internal/router"
)

type fakeInjector struct {
	dead   map[agentid.Agent]bool
	pasted map[agentid.Agent]string
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{dead: make(map[agentid.Agent]bool), pasted: make(map[agentid.Agent]string)}
}
func (f *fakeInjector) Paste(_ context.Context, target agentid.Agent, text string) error {
	f.pasted[target] = text
	return nil
}
func (f *fakeInjector) PaneAlive(target agentid.Agent) bool { return !f.dead[target] }

type fakeCollab struct {
	runCalls []collab.Request
	result   collab.Result
	err      error
}

func (f *fakeCollab) Run(_ context.Context, req collab.Request, _ string, _ func() bool) (collab.Result, error) {
	f.runCalls = append(f.runCalls, req)
	return f.result, f.err
}
func (f *fakeCollab) Interject(text string) {}

type harness struct {
	dir  string
	cs   *cursorstore.Store
	path map[agentid.Agent]string
	r    *router.Router
	inj  *fakeInjector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cs, err := cursorstore.New(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatal(err)
	}
	bus, err := eventbus.New(filepath.Join(dir, "bus"))
	if err != nil {
		t.Fatal(err)
	}
	ex := room.NewExtractor()
	inj := newFakeInjector()
	r := router.New(cs, ex, inj, bus, router.Config{PollInterval: 2 * time.Millisecond, TurnTimeout: 200 * time.Millisecond, ClaudeDebugDir: filepath.Join(dir, "debug")})

	paths := map[agentid.Agent]string{
		agentid.Claude: filepath.Join(dir, "claude.jsonl"),
		agentid.Codex:  filepath.Join(dir, "codex.jsonl"),
	}
	for agent, p := range paths {
		if err := os.WriteFile(p, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}
		if err := cs.SaveParticipant(cursorstore.Participant{
			Agent: agent, SessionFile: p, SessionID: string(agent) + "-s", RegisteredAt: time.Now(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	return &harness{dir: dir, cs: cs, path: paths, r: r, inj: inj}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatal(err)
	}
}

func appendCodexAssistant(t *testing.T, path, text string) {
	t.Helper()
	appendLine(t, path, `{"type":"event_msg","payload":{"type":"agent_message","text":"`+text+`"}}`)
	appendLine(t, path, `{"type":"event_msg","payload":{"type":"task_complete"}}`)
}

func TestToggleTargetFlipsCurrentTarget(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	if c.CurrentTarget() != agentid.Claude {
		t.Fatalf("got %s, want claude", c.CurrentTarget())
	}
	c.ToggleTarget()
	if c.CurrentTarget() != agentid.Codex {
		t.Fatalf("got %s, want codex", c.CurrentTarget())
	}
	c.ToggleTarget()
	if c.CurrentTarget() != agentid.Claude {
		t.Fatalf("got %s, want claude", c.CurrentTarget())
	}
}

func TestToggleTargetNoopDuringCollab(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	c.mode = ModeCollab
	c.ToggleTarget()
	if c.CurrentTarget() != agentid.Claude {
		t.Fatalf("toggle should be a no-op mid-collab, got %s", c.CurrentTarget())
	}
}

func TestSubmitSendsToCurrentTarget(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	if _, err := c.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := h.r.PendingFor(agentid.Claude); !ok {
		t.Fatal("expected a pending watch on claude after Submit")
	}
}

func TestSubmitSlashHaltSetsHaltRequested(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	if _, err := c.Submit(context.Background(), "/halt"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !c.haltRequested {
		t.Fatal("expected /halt to set haltRequested")
	}
}

func TestSubmitDuringCollabEnqueuesInterjection(t *testing.T) {
	h := newHarness(t)
	fc := &fakeCollab{}
	c := New(Config{Router: h.r, Collab: fc, InitialTarget: agentid.Claude})
	c.mode = ModeCollab
	if _, err := c.Submit(context.Background(), "heads up"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// No pending watch should have been created; the text went to Interject,
	// not SendUserMessage.
	if _, ok := h.r.PendingFor(agentid.Claude); ok {
		t.Fatal("collab-mode Submit must not create a router watch")
	}
}

func TestSlashStatusRendersTargetModeAndPending(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	if _, err := c.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status, err := c.Submit(context.Background(), "/status")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.Contains(status, "target=claude") || !strings.Contains(status, "mode=normal") {
		t.Fatalf("unexpected status rendering: %q", status)
	}
	if !strings.Contains(status, "pending[claude]=yes") {
		t.Fatalf("expected claude's watch to show pending, got: %q", status)
	}
	if !strings.Contains(status, "pending[codex]=no") {
		t.Fatalf("expected codex to show no pending watch, got: %q", status)
	}
}

func TestSlashCollabStartsUserInitiatedSession(t *testing.T) {
	h := newHarness(t)
	fc := &fakeCollab{result: collab.Result{StopReason: collab.StopTurnsReached}}
	c := New(Config{Router: h.r, Collab: fc, InitialTarget: agentid.Claude, ExchangeLogDir: h.dir})
	if _, err := c.Submit(context.Background(), "/collab"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(fc.runCalls) != 1 {
		t.Fatalf("expected one collab Run call, got %d", len(fc.runCalls))
	}
	req := fc.runCalls[0]
	if req.AgentInitiated {
		t.Fatal("expected user-initiated request (AgentInitiated=false)")
	}
	if req.Starter != agentid.Claude {
		t.Fatalf("got starter=%s, want claude", req.Starter)
	}
	if c.Mode() != ModeNormal {
		t.Fatal("expected mode to return to normal after Run returns")
	}
}

func TestIdleDetectsCollabHandoff(t *testing.T) {
	h := newHarness(t)
	if _, err := h.r.SendUserMessage(context.Background(), agentid.Codex, "hello codex"); err != nil {
		t.Fatal(err)
	}
	appendCodexAssistant(t, h.path[agentid.Codex], "let's pair\\n[COLLAB]")

	fc := &fakeCollab{result: collab.Result{StopReason: collab.StopConverged}}
	c := New(Config{Router: h.r, Collab: fc, InitialTarget: agentid.Claude, ExchangeLogDir: h.dir})

	started, err := c.Idle(context.Background())
	if err != nil {
		t.Fatalf("Idle: %v", err)
	}
	if !started {
		t.Fatal("expected Idle to detect the trailing [COLLAB] marker and start a session")
	}
	if len(fc.runCalls) != 1 {
		t.Fatalf("expected one collab Run call, got %d", len(fc.runCalls))
	}
	if !fc.runCalls[0].AgentInitiated {
		t.Fatal("expected agent-initiated request for an idle-detected [COLLAB]")
	}
	if fc.runCalls[0].Starter != agentid.Codex {
		t.Fatalf("got starter=%s, want codex", fc.runCalls[0].Starter)
	}
}

func TestIdleNoopWhenNoResponsePending(t *testing.T) {
	h := newHarness(t)
	c := New(Config{Router: h.r, Collab: &fakeCollab{}, InitialTarget: agentid.Claude})
	started, err := c.Idle(context.Background())
	if err != nil {
		t.Fatalf("Idle: %v", err)
	}
	if started {
		t.Fatal("expected no collab session without an outstanding watch")
	}
}

func TestPostHaltOneShot(t *testing.T) {
	h := newHarness(t)
	fc := &fakeCollab{result: collab.Result{StopReason: collab.StopUserHalt, PostHalt: true}}
	c := New(Config{Router: h.r, Collab: fc, InitialTarget: agentid.Claude, ExchangeLogDir: h.dir})
	if _, err := c.Submit(context.Background(), "/collab"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !c.PostHalt() {
		t.Fatal("expected PostHalt to be set after a user_halt collab result")
	}
	c.ConsumePostHalt()
	if c.PostHalt() {
		t.Fatal("expected PostHalt to clear after ConsumePostHalt")
	}
}

func TestPostHaltPrependsPrefixToNextSend(t *testing.T) {
	h := newHarness(t)
	fc := &fakeCollab{result: collab.Result{StopReason: collab.StopUserHalt, PostHalt: true}}
	c := New(Config{Router: h.r, Collab: fc, InitialTarget: agentid.Claude, ExchangeLogDir: h.dir})

	if _, err := c.Submit(context.Background(), "/collab"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !c.PostHalt() {
		t.Fatal("expected PostHalt to be set after a user_halt collab result")
	}

	if _, err := c.Submit(context.Background(), "next message"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := "(collab halted by user)\n\nnext message"
	got := h.inj.pasted[agentid.Claude]
	if !strings.Contains(got, want) {
		t.Fatalf("pasted text = %q, want it to contain %q", got, want)
	}
	if c.PostHalt() {
		t.Fatal("expected PostHalt to clear once consumed by the real send")
	}

	if _, err := c.Submit(context.Background(), "another message"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if strings.Contains(h.inj.pasted[agentid.Claude], "collab halted by user") {
		t.Fatal("expected the prefix to be applied only once")
	}
}
