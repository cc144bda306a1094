// Package clerr defines claodex's error taxonomy (spec.md §7): the small set
// of typed, inspectable errors the Router and Collab Orchestrator surface
// rather than recover from, following the wrapped-inspectable-error-struct
// convention seen in internal/agent/crash_test.go and internal/orchestrator's
// spawn-failure errors, instead of bare strings.
package clerr

import (
	"errors"
	"fmt"

	"github.com/agusx1211/claodex/internal/agentid"
)

// PaneDead means the injector or liveness probe reports the target's input
// channel is gone. Fatal to any in-flight send.
type PaneDead struct {
	Target agentid.Agent
}

func (e *PaneDead) Error() string {
	return fmt.Sprintf("pane dead: %s", e.Target)
}

// SmokeSignal is wait_for_response's fail-fast error: the deadline was hit,
// or a turn-end marker was observed but no assistant text could be
// extracted from it.
type SmokeSignal struct {
	Target agentid.Agent
}

func (e *SmokeSignal) Error() string {
	return fmt.Sprintf("SMOKE SIGNAL: %s", e.Target)
}

// Interference means an unexpected non-meta user row appeared in the
// target's JSONL during a collab wait.
type Interference struct {
	Target agentid.Agent
}

func (e *Interference) Error() string {
	return fmt.Sprintf("interference detected: %s", e.Target)
}

// InjectFailed means the paste primitive itself failed. Treated like
// PaneDead for routing purposes; the delivery cursor must not be advanced.
type InjectFailed struct {
	Target agentid.Agent
	Cause  error
}

func (e *InjectFailed) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inject failed for %s: %v", e.Target, e.Cause)
	}
	return fmt.Sprintf("inject failed for %s", e.Target)
}

func (e *InjectFailed) Unwrap() error { return e.Cause }

// CursorRetreat is a programming error: something attempted to persist a
// cursor value smaller than the one already on disk.
type CursorRetreat struct {
	Agent   agentid.Agent
	Field   string
	Current int
	Attempt int
}

func (e *CursorRetreat) Error() string {
	return fmt.Sprintf("cursor retreat rejected: %s.%s current=%d attempt=%d", e.Agent, e.Field, e.Current, e.Attempt)
}

// As-helpers so callers can branch without importing this package's types
// directly everywhere.

func IsPaneDead(err error) bool {
	var e *PaneDead
	return errors.As(err, &e)
}

func IsSmokeSignal(err error) bool {
	var e *SmokeSignal
	return errors.As(err, &e)
}

func IsInterference(err error) bool {
	var e *Interference
	return errors.As(err, &e)
}

func IsCursorRetreat(err error) bool {
	var e *CursorRetreat
	return errors.As(err, &e)
}
