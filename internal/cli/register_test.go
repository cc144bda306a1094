package cli

import (
	"bytes"
	"testing"

	"github.com/agusx1211/claodex/internal/cursorstore"
)

func TestRunRegisterWritesParticipant(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	cmd := registerCmd
	cmd.Flags().Set("agent", "claude")
	cmd.Flags().Set("session-file", "/tmp/claude.jsonl")
	cmd.Flags().Set("session-id", "sess-1")
	cmd.Flags().Set("pane-handle", "1234")
	cmd.Flags().Set("cwd", "")
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runRegister(cmd, nil); err != nil {
		t.Fatalf("runRegister: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("registered")) {
		t.Fatalf("output = %q, want mention of registered", out.String())
	}

	cs, err := cursorstore.New(layoutFor(root).stateDir)
	if err != nil {
		t.Fatalf("opening state store: %v", err)
	}
	p, _, err := cs.LoadParticipant("claude")
	if err != nil {
		t.Fatalf("LoadParticipant: %v", err)
	}
	if p.SessionID != "sess-1" || p.SessionFile != "/tmp/claude.jsonl" || p.PaneHandle != "1234" {
		t.Fatalf("participant = %+v, not as registered", p)
	}
}

func TestRunRegisterRejectsUnknownAgent(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	cmd := registerCmd
	cmd.Flags().Set("agent", "gemini")
	cmd.Flags().Set("session-file", "/tmp/x.jsonl")
	cmd.Flags().Set("session-id", "sess-1")
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runRegister(cmd, nil); err == nil {
		t.Fatal("expected error for unrecognized agent")
	}
}
