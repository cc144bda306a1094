package cli

import (
	"testing"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/cursorstore"
)

func TestLayoutForNestsUnderDotClaodex(t *testing.T) {
	l := layoutFor("/tmp/ws")
	if l.stateDir != "/tmp/ws/.claodex/state" {
		t.Fatalf("got stateDir=%s", l.stateDir)
	}
	if l.sessionDir != "/tmp/ws/.claodex/session" {
		t.Fatalf("got sessionDir=%s", l.sessionDir)
	}
	if l.exchangeDir != "/tmp/ws/.claodex/exchange" {
		t.Fatalf("got exchangeDir=%s", l.exchangeDir)
	}
}

func TestBothRegisteredReportsMissingAgents(t *testing.T) {
	cs, err := cursorstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("cursorstore.New: %v", err)
	}

	_, missing := bothRegistered(cs)
	if len(missing) != 2 {
		t.Fatalf("expected both agents missing, got %v", missing)
	}

	if err := cs.SaveParticipant(cursorstore.Participant{
		Agent:        agentid.Claude,
		SessionFile:  "/tmp/claude.jsonl",
		SessionID:    "s1",
		RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("SaveParticipant: %v", err)
	}

	found, missing := bothRegistered(cs)
	if len(missing) != 1 || missing[0] != agentid.Codex {
		t.Fatalf("expected only codex missing, got %v", missing)
	}
	if found[agentid.Claude].SessionID != "s1" {
		t.Fatalf("expected claude's record to be returned, got %+v", found[agentid.Claude])
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("127.0.0.1:8080")
	if err != nil {
		t.Fatalf("splitHostPort: %v", err)
	}
	if host != "127.0.0.1" || port != 8080 {
		t.Fatalf("got host=%s port=%d", host, port)
	}

	if _, _, err := splitHostPort("not-an-addr"); err == nil {
		t.Fatal("expected an error for a malformed address")
	}
}
