package router

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/cursorstore"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/room"
)

// fakeInjector records every pasted payload per target and can simulate a
// dead pane.
type fakeInjector struct {
	mu      sync.Mutex
	pastes  map[agentid.Agent][]string
	dead    map[agentid.Agent]bool
	failErr error
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{pastes: make(map[agentid.Agent][]string), dead: make(map[agentid.Agent]bool)}
}

func (f *fakeInjector) Paste(_ context.Context, target agentid.Agent, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.pastes[target] = append(f.pastes[target], payload)
	return nil
}

func (f *fakeInjector) PaneAlive(target agentid.Agent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead[target]
}

func (f *fakeInjector) lastPayload(target agentid.Agent) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.pastes[target]
	if len(ps) == 0 {
		return ""
	}
	return ps[len(ps)-1]
}

type testHarness struct {
	t    *testing.T
	dir  string
	cs   *cursorstore.Store
	ex   *room.Extractor
	inj  *fakeInjector
	bus  *eventbus.Bus
	r    *Router
	path map[agentid.Agent]string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()
	cs, err := cursorstore.New(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("cursorstore.New: %v", err)
	}
	bus, err := eventbus.New(filepath.Join(dir, "bus"))
	if err != nil {
		t.Fatalf("eventbus.New: %v", err)
	}
	ex := room.NewExtractor()
	inj := newFakeInjector()
	r := New(cs, ex, inj, bus, Config{PollInterval: 5 * time.Millisecond, TurnTimeout: time.Second, ClaudeDebugDir: filepath.Join(dir, "debug")})

	paths := map[agentid.Agent]string{
		agentid.Claude: filepath.Join(dir, "claude.jsonl"),
		agentid.Codex:  filepath.Join(dir, "codex.jsonl"),
	}
	for agent, p := range paths {
		if err := os.WriteFile(p, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}
		if err := cs.SaveParticipant(cursorstore.Participant{
			Agent:        agent,
			SessionFile:  p,
			SessionID:    string(agent) + "-session",
			RegisteredAt: time.Now(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	return &testHarness{t: t, dir: dir, cs: cs, ex: ex, inj: inj, bus: bus, r: r, path: paths}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("appending line: %v", err)
	}
}

func TestS1SimpleRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.r.SendUserMessage(ctx, agentid.Claude, "hello"); err != nil {
		t.Fatalf("send to claude: %v", err)
	}
	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"hello"}]}}`)
	appendLine(t, h.path[agentid.Claude], `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`)

	if _, err := h.r.SendUserMessage(ctx, agentid.Codex, "your turn"); err != nil {
		t.Fatalf("send to codex: %v", err)
	}

	got := h.inj.lastPayload(agentid.Codex)
	want := "--- user ---\nhello\n\n--- claude ---\nhi\n\n--- user ---\nyour turn"
	if got != want {
		t.Fatalf("got payload:\n%q\nwant:\n%q", got, want)
	}

	// delivery[codex] must now equal read[claude]; a further send with no
	// new claude activity composes just the new user block.
	if _, err := h.r.SendUserMessage(ctx, agentid.Codex, "ok"); err != nil {
		t.Fatalf("second send to codex: %v", err)
	}
	got2 := h.inj.lastPayload(agentid.Codex)
	if got2 != "--- user ---\nok" {
		t.Fatalf("got %q, want just the new user block", got2)
	}
}

func TestS2StackedSendsNoPeerDelta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.r.SendUserMessage(ctx, agentid.Claude, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.r.SendUserMessage(ctx, agentid.Claude, "second"); err != nil {
		t.Fatal(err)
	}

	ps, ok := h.r.PendingFor(agentid.Claude)
	if !ok {
		t.Fatal("expected a pending watch for claude")
	}
	joined := RenderPayload(ps.Blocks)
	if !strings.Contains(joined, "first") || !strings.Contains(joined, "second") {
		t.Fatalf("expected merged blocks to contain both sends, got %q", joined)
	}
	if len(ps.Blocks) != 2 {
		t.Fatalf("expected exactly 2 merged blocks (no peer delta), got %d: %+v", len(ps.Blocks), ps.Blocks)
	}
}

func TestEchoDedupDropsOnlyFirstMatch(t *testing.T) {
	h := newHarness(t)

	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"same text"}]}}`)
	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"same text"}]}}`)

	blocks, _, err := h.r.BuildDeltaForTarget(agentid.Codex, "same text")
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected exactly one surviving block (first dropped as echo), got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Text != "same text" {
		t.Fatalf("unexpected surviving block: %+v", blocks[0])
	}
}

func TestHeaderHygieneIdempotence(t *testing.T) {
	composed := RenderPayload([]Block{
		{Source: "user", Text: "old context"},
		{Source: "claude", Text: "old reply"},
		{Source: "user", Text: "the actual instruction"},
	})
	once := stripInjectedContext(composed)
	twice := stripInjectedContext(once)
	if once != twice {
		t.Fatalf("stripInjectedContext is not idempotent: once=%q twice=%q", once, twice)
	}
	if once != "the actual instruction" {
		t.Fatalf("got %q, want trailing user block only", once)
	}
}

func TestHeaderHygieneFallsBackWhenNoTrailingUserBlock(t *testing.T) {
	composed := RenderPayload([]Block{
		{Source: "codex", Text: "codex's earlier reply"},
		{Source: "claude", Text: "claude's own reply"},
	})
	got := stripInjectedContext(composed)
	if got != composed {
		t.Fatalf("expected unmodified fallback when no user block, got %q", got)
	}
}

func TestHeaderHygieneUsesLastUserBlockNotLastBlock(t *testing.T) {
	composed := RenderPayload([]Block{
		{Source: "user", Text: "earlier interjection"},
		{Source: "codex", Text: "codex replied"},
		{Source: "user", Text: "the real instruction"},
		{Source: "claude", Text: "claude replied last"},
	})
	got := stripInjectedContext(composed)
	if got != "the real instruction" {
		t.Fatalf("got %q, want last user block even though it isn't the last block", got)
	}
}

func TestSyncAbsorption(t *testing.T) {
	h := newHarness(t)

	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"unrouted"}]}}`)
	if _, _, err := h.r.BuildDeltaForTarget(agentid.Codex, ""); err != nil {
		t.Fatal(err)
	}

	if err := h.r.SyncDeliveryCursors(agentid.Codex); err != nil {
		t.Fatalf("sync: %v", err)
	}

	blocks, _, err := h.r.BuildDeltaForTarget(agentid.Codex, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected empty delta after sync absorption, got %+v", blocks)
	}
}

func TestSendFailsFastWhenPaneDead(t *testing.T) {
	h := newHarness(t)
	h.inj.dead[agentid.Claude] = true

	_, err := h.r.SendUserMessage(context.Background(), agentid.Claude, "hi")
	if err == nil {
		t.Fatal("expected pane_dead error")
	}
}

func TestMetricsReflectSendAndReceive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before := h.bus.Snapshot()
	if before.TotalSent != 0 || before.PendingWatches[string(agentid.Claude)] {
		t.Fatalf("expected zero-value snapshot before any activity, got %+v", before)
	}

	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"earlier"}]}}`)

	if _, err := h.r.SendUserMessage(ctx, agentid.Claude, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	afterSend := h.bus.Snapshot()
	if afterSend.TotalSent != 1 {
		t.Fatalf("TotalSent = %d, want 1", afterSend.TotalSent)
	}
	if !afterSend.PendingWatches[string(agentid.Claude)] {
		t.Fatal("expected PendingWatches[claude] to be true after a send")
	}
	if afterSend.ReadCursor[string(agentid.Claude)] == 0 && afterSend.DeliveryCursor[string(agentid.Claude)] == 0 {
		t.Fatal("expected non-zero cursor bookkeeping after a send")
	}

	appendLine(t, h.path[agentid.Claude], `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"hello"}]}}`)
	appendLine(t, h.path[agentid.Claude], `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`)
	appendLine(t, h.path[agentid.Claude], `{"type":"system","subtype":"turn_duration"}`)

	resp, done, err := h.r.PollForResponse(agentid.Claude, false)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !done {
		t.Fatal("expected the turn to resolve")
	}
	if resp.Text != "hi" {
		t.Fatalf("got %q, want %q", resp.Text, "hi")
	}

	afterRecv := h.bus.Snapshot()
	if afterRecv.TotalReceived != 1 {
		t.Fatalf("TotalReceived = %d, want 1", afterRecv.TotalReceived)
	}
	if afterRecv.PendingWatches[string(agentid.Claude)] {
		t.Fatal("expected PendingWatches[claude] to clear once the turn resolved")
	}
}
