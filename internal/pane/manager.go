package pane

import (
	"context"
	"fmt"
	"sync"

	"github.com/agusx1211/claodex/internal/agentid"
)

// Manager dispatches router.Injector calls to the right agent's Pane. One
// Manager serves one workspace's two panes.
type Manager struct {
	mu    sync.RWMutex
	panes map[agentid.Agent]*Pane
}

// NewManager returns an empty Manager; panes are registered as agents are
// started (via Register) rather than all up front.
func NewManager() *Manager {
	return &Manager{panes: make(map[agentid.Agent]*Pane)}
}

// Register attaches p as agent's pane, replacing any prior registration.
func (m *Manager) Register(agent agentid.Agent, p *Pane) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panes[agent] = p
}

func (m *Manager) get(agent agentid.Agent) (*Pane, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.panes[agent]
	return p, ok
}

// Paste implements router.Injector.
func (m *Manager) Paste(ctx context.Context, target agentid.Agent, payload string) error {
	p, ok := m.get(target)
	if !ok {
		return fmt.Errorf("pane: no registered pane for %s", target)
	}
	return p.paste(ctx, payload)
}

// PaneAlive implements router.Injector.
func (m *Manager) PaneAlive(target agentid.Agent) bool {
	p, ok := m.get(target)
	if !ok {
		return false
	}
	return p.alive()
}

// Close tears down every registered pane.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.panes {
		_ = p.Close()
	}
}
