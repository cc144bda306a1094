// Package pane is claodex's reference Injector (spec.md §6.1): each agent
// process runs attached to its own PTY, Paste writes the literal payload
// bytes followed by a submit keystroke directly into the PTY master (no
// bracketed-paste wrapping, per spec.md §9's "Bracketed-paste hazard"), and
// PaneAlive probes the child process with signal 0. Grounded in the
// teacher's internal/webserver/pty_handler.go (pty.StartWithAttrs, process
// group signaling) and internal/session/session.go's isProcessAlive.
package pane

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/debug"
)

const (
	defaultRows = 40
	defaultCols = 120

	// submitKeystroke is sent after the payload to trigger the target
	// agent's own submit handling (Enter in a normal prompt).
	submitKeystroke = "\r"

	// adaptiveDelayPerByte scales the pause between paste and submit with
	// payload size (spec.md §9's "Adaptive submit delay"), bounded by
	// maxAdaptiveDelay so a huge payload doesn't stall the core thread.
	adaptiveDelayPerByte = 80 * time.Microsecond
	minAdaptiveDelay     = 30 * time.Millisecond
	maxAdaptiveDelay     = 1500 * time.Millisecond
)

// Pane is one agent's PTY-backed process.
type Pane struct {
	agent agentid.Agent
	cmd   *exec.Cmd
	ptmx  *os.File

	mu sync.Mutex
}

// Start launches command (with args) in dir, attached to a new PTY, as
// agent's pane.
func Start(agent agentid.Agent, command string, args []string, dir string) (*Pane, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	attrs := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attrs

	ptmx, err := pty.StartWithAttrs(cmd, &pty.Winsize{Rows: defaultRows, Cols: defaultCols}, attrs)
	if err != nil {
		return nil, fmt.Errorf("pane: starting %s: %w", agent, err)
	}

	debug.LogKV("pane", "started", "agent", agent, "command", command, "pid", cmd.Process.Pid)
	return &Pane{agent: agent, cmd: cmd, ptmx: ptmx}, nil
}

// Resize updates the PTY window size, e.g. on a terminal resize.
func (p *Pane) Resize(rows, cols int) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Read implements io.Reader, for a reader goroutine to mirror pane output
// to a terminal or log. Not used by the Injector contract itself (which
// only writes), but kept since any real front end needs to read output
// back out of the PTY master the same descriptor Paste writes to.
func (p *Pane) Read(buf []byte) (int, error) {
	return p.ptmx.Read(buf)
}

// paste writes payload's literal bytes, pauses an adaptive delay, then
// writes the submit keystroke. Best-effort atomic per spec.md §6.1: on a
// write failure mid-payload the target is left with partial content, which
// is why the whole payload is buffered into one Write call rather than
// streamed piecemeal.
func (p *Pane) paste(ctx context.Context, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.ptmx.WriteString(payload); err != nil {
		return fmt.Errorf("pane: write payload to %s: %w", p.agent, err)
	}

	delay := time.Duration(len(payload)) * adaptiveDelayPerByte
	if delay < minAdaptiveDelay {
		delay = minAdaptiveDelay
	}
	if delay > maxAdaptiveDelay {
		delay = maxAdaptiveDelay
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := p.ptmx.WriteString(submitKeystroke); err != nil {
		return fmt.Errorf("pane: write submit keystroke to %s: %w", p.agent, err)
	}
	return nil
}

// alive reports whether the pane's process is still accepting input,
// mirroring internal/session/session.go's isProcessAlive (signal 0 probe).
// An exited child that has not been reaped still answers signal 0, so a
// non-blocking wait reaps it first and reports it dead.
func (p *Pane) alive() bool {
	if p.cmd.Process == nil {
		return false
	}
	var status syscall.WaitStatus
	if pid, err := syscall.Wait4(p.cmd.Process.Pid, &status, syscall.WNOHANG, nil); err == nil && pid == p.cmd.Process.Pid {
		return false
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Close terminates the pane's process group and releases the PTY.
func (p *Pane) Close() error {
	_ = p.ptmx.Close()
	if p.cmd.Process != nil && p.cmd.Process.Pid > 0 {
		_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	}
	return nil
}
