// Package eventbus is claodex's Event Bus sink (spec.md §4.6): it appends
// structured events to a persistent log and atomically overwrites a metrics
// snapshot, both guarded by one mutex since the main thread, the halt
// listener, and the poll worker can all produce concurrently. The atomic
// write mirrors internal/profilescore/store.go's write-temp-then-rename;
// the append-only log mirrors internal/debug's single-writer append file.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
)

// Kind enumerates the event-bus record kinds persisted kinds allowed by
// spec.md §4.6. Any other kind is rejected.
type Kind string

const (
	KindSent   Kind = "sent"
	KindRecv   Kind = "recv"
	KindCollab Kind = "collab"
	KindWatch  Kind = "watch"
	KindError  Kind = "error"
	KindSystem Kind = "system"
	KindStatus Kind = "status"
)

var validKinds = map[Kind]bool{
	KindSent: true, KindRecv: true, KindCollab: true,
	KindWatch: true, KindError: true, KindSystem: true, KindStatus: true,
}

// Record is one line of the events file.
type Record struct {
	Time    time.Time      `json:"time"`
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Agent   string         `json:"agent,omitempty"`
	Target  string         `json:"target,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// MetricsSnapshot is the canonical in-memory/on-disk metrics shape. Fields
// are additive; UpdateMetrics merges new values into the existing snapshot
// rather than replacing it wholesale.
type MetricsSnapshot struct {
	UpdatedAt      time.Time       `json:"updated_at"`
	ReadCursor     map[string]int  `json:"read_cursor"`
	DeliveryCursor map[string]int  `json:"delivery_cursor"`
	PendingWatches map[string]bool `json:"pending_watches"`
	CollabActive   bool            `json:"collab_active"`
	CollabTurns    int             `json:"collab_turns,omitempty"`
	TotalSent      int             `json:"total_sent"`
	TotalReceived  int             `json:"total_received"`
	LastStopReason string          `json:"last_stop_reason,omitempty"`
}

// Validate enforces the fixed schema's invariants: no negative counters and
// only known agent keys in the cursor maps.
func (m MetricsSnapshot) Validate() error {
	if m.TotalSent < 0 || m.TotalReceived < 0 || m.CollabTurns < 0 {
		return fmt.Errorf("eventbus: negative counter in metrics snapshot")
	}
	for _, cursors := range []map[string]int{m.ReadCursor, m.DeliveryCursor} {
		for agent, v := range cursors {
			if !agentid.Agent(agent).Valid() {
				return fmt.Errorf("eventbus: unknown agent key %q in metrics snapshot", agent)
			}
			if v < 0 {
				return fmt.Errorf("eventbus: negative cursor value for %q", agent)
			}
		}
	}
	return nil
}

// Bus is the sink: one per workspace session.
type Bus struct {
	mu          sync.Mutex
	eventsFile  *os.File
	metricsPath string
	metrics     MetricsSnapshot
}

// New truncates and opens the events log and metrics file under root,
// per spec.md §4.6: "Both files are truncated on session start."
func New(root string) (*Bus, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("eventbus: creating %s: %w", root, err)
	}
	eventsPath := filepath.Join(root, "events.jsonl")
	f, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventbus: truncating %s: %w", eventsPath, err)
	}

	metricsPath := filepath.Join(root, "metrics.json")
	b := &Bus{
		eventsFile:  f,
		metricsPath: metricsPath,
		metrics: MetricsSnapshot{
			ReadCursor:     make(map[string]int),
			DeliveryCursor: make(map[string]int),
			PendingWatches: make(map[string]bool),
		},
	}
	if err := b.writeMetricsLocked(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

// Log appends one record. Rejects kinds outside the fixed set.
func (b *Bus) Log(kind Kind, message string, agent, target agentid.Agent, meta map[string]any) error {
	if !validKinds[kind] {
		return fmt.Errorf("eventbus: rejected kind %q", kind)
	}
	rec := Record{
		Time:    time.Now().UTC(),
		Kind:    kind,
		Message: message,
		Meta:    meta,
	}
	if agent != "" {
		rec.Agent = string(agent)
	}
	if target != "" {
		rec.Target = string(target)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("eventbus: encoding record: %w", err)
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err = b.eventsFile.Write(data)
	return err
}

// UpdateMetrics merges fn's effect into the canonical snapshot, validates
// the result against the fixed schema, and atomically overwrites the
// metrics file.
func (b *Bus) UpdateMetrics(fn func(*MetricsSnapshot)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.metrics
	next.ReadCursor = cloneIntMap(b.metrics.ReadCursor)
	next.DeliveryCursor = cloneIntMap(b.metrics.DeliveryCursor)
	next.PendingWatches = cloneBoolMap(b.metrics.PendingWatches)
	fn(&next)
	next.UpdatedAt = time.Now().UTC()

	if err := next.Validate(); err != nil {
		return err
	}
	b.metrics = next
	return b.writeMetricsLocked()
}

// Snapshot returns a copy of the current in-memory metrics, for display by
// `claodex status` and internal/statusweb without re-reading metrics.json.
func (b *Bus) Snapshot() MetricsSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.metrics
	snap.ReadCursor = cloneIntMap(b.metrics.ReadCursor)
	snap.DeliveryCursor = cloneIntMap(b.metrics.DeliveryCursor)
	snap.PendingWatches = cloneBoolMap(b.metrics.PendingWatches)
	return snap
}

func (b *Bus) writeMetricsLocked() error {
	data, err := json.MarshalIndent(b.metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("eventbus: encoding metrics: %w", err)
	}
	tmp := b.metricsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("eventbus: writing temp metrics: %w", err)
	}
	if err := os.Rename(tmp, b.metricsPath); err != nil {
		return fmt.Errorf("eventbus: replacing metrics: %w", err)
	}
	return nil
}

// Close closes the events file. Safe to call once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eventsFile.Close()
}

func cloneIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
