package collab

import (
	"testing"

	"github.com/agusx1211/claodex/internal/agentid"
)

func TestHasTrailingSignal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"ship it\n[CONVERGED]", true},
		{"ship it\n[CONVERGED]\n\n", true},
		{"[CONVERGED] but with more after", false},
		{"no signal here", false},
		{"", false},
	}
	for _, c := range cases {
		if got := hasTrailingSignal(c.text, signalConverged); got != c.want {
			t.Errorf("hasTrailingSignal(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestStripTrailingSignal(t *testing.T) {
	got := stripTrailingSignal("ship it\n[CONVERGED]", signalConverged)
	if got != "ship it" {
		t.Fatalf("got %q, want %q", got, "ship it")
	}
	// No trailing signal: unchanged.
	got = stripTrailingSignal("no signal", signalConverged)
	if got != "no signal" {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestStripAllSignalsPreservesNonTrailingBrackets(t *testing.T) {
	got := stripAllSignals("design notes [COLLAB] appear mid-sentence\n[COLLAB]")
	want := "design notes [COLLAB] appear mid-sentence"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSyncScope(t *testing.T) {
	if scope := syncScope(StopConverged, ""); scope != nil {
		t.Fatalf("converged: expected nil (both), got %v", scope)
	}
	if scope := syncScope(StopTurnsReached, agentid.Claude); scope != nil {
		t.Fatalf("turns_reached: expected nil (both) even with a stray lastUnrouted, got %v", scope)
	}
	scope := syncScope(StopUserHalt, agentid.Claude)
	if len(scope) != 1 || scope[0] != agentid.Claude {
		t.Fatalf("user_halt with unrouted=claude: got %v, want [claude]", scope)
	}
	if scope := syncScope(StopUserHalt, ""); scope != nil {
		t.Fatalf("user_halt with no unrouted response: expected nil (both), got %v", scope)
	}
}
