package eventbus

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/agusx1211/claodex/internal/agentid"
)

func TestLogRejectsUnknownKind(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Log(Kind("bogus"), "x", "", "", nil); err == nil {
		t.Fatal("expected rejection of an unrecognized kind")
	}
}

func TestLogAppendsOneJSONLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Log(KindSent, "sent to codex", agentid.Claude, agentid.Codex, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.Log(KindRecv, "received from claude", agentid.Codex, "", nil); err != nil {
		t.Fatal(err)
	}
	b.Close()

	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("got %d lines, want 2", lines)
	}
}

func TestUpdateMetricsValidatesAndPersistsAtomically(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	err = b.UpdateMetrics(func(m *MetricsSnapshot) {
		m.TotalSent = 3
		m.ReadCursor["claude"] = 10
	})
	if err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(dir, "metrics.json")); statErr != nil {
		t.Fatalf("expected metrics.json to exist: %v", statErr)
	}

	err = b.UpdateMetrics(func(m *MetricsSnapshot) {
		m.TotalSent = -1
	})
	if err == nil {
		t.Fatal("expected validation failure for negative counter")
	}
}

func TestNewTruncatesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("expected truncated events file, got %q", data)
	}
}
