package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/config"
	"github.com/agusx1211/claodex/internal/cursorstore"
	"github.com/agusx1211/claodex/internal/eventbus"
	"github.com/agusx1211/claodex/internal/room"
	"github.com/agusx1211/claodex/internal/router"
)

// splitHostPort parses an "host:port" address into its numeric port, for
// callers (like `claodex web --mdns`) that need the port as an int.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// workspaceLayout is the on-disk fan-out of one workspace's .claodex
// directory: state (cursorstore), session (event bus), and exchange
// (collab transcripts), nesting all tool-owned state under one dotdir
// rather than scattering it.
type workspaceLayout struct {
	root        string
	stateDir    string
	sessionDir  string
	exchangeDir string
}

func layoutFor(root string) workspaceLayout {
	dot := filepath.Join(root, ".claodex")
	return workspaceLayout{
		root:        root,
		stateDir:    filepath.Join(dot, "state"),
		sessionDir:  filepath.Join(dot, "session"),
		exchangeDir: filepath.Join(dot, "exchange"),
	}
}

func currentWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Abs(dir)
}

// wiring bundles the components a running claodex process needs, assembled
// the way internal/cli's start/attach commands would from a bare workspace
// root: config, cursor store, event bus, extractor, and a Router built on
// top of them. Callers still need to supply an Injector (a *pane.Manager
// in production, a fake in tests) before constructing the Router.
type wiring struct {
	layout workspaceLayout
	cfg    config.Config
	cs     *cursorstore.Store
	bus    *eventbus.Bus
	ex     *room.Extractor
}

func openWiring(root string) (*wiring, error) {
	layout := layoutFor(root)

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cs, err := cursorstore.New(layout.stateDir)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	bus, err := eventbus.New(layout.sessionDir)
	if err != nil {
		return nil, fmt.Errorf("opening event bus: %w", err)
	}
	if err := os.MkdirAll(layout.exchangeDir, 0755); err != nil {
		return nil, fmt.Errorf("creating exchange dir: %w", err)
	}

	return &wiring{layout: layout, cfg: cfg, cs: cs, bus: bus, ex: room.NewExtractor()}, nil
}

func (w *wiring) routerConfig() router.Config {
	return router.Config{
		PollInterval:   time.Duration(w.cfg.PollIntervalSeconds * float64(time.Second)),
		TurnTimeout:    time.Duration(w.cfg.TurnTimeoutSeconds * float64(time.Second)),
		ClaudeDebugDir: w.cfg.ClaudeDebugDir,
	}
}

// bothRegistered reports whether both agents have a participant record,
// which start/attach/doctor all need to check before wiring a Router.
func bothRegistered(cs *cursorstore.Store) (map[agentid.Agent]cursorstore.Participant, []agentid.Agent) {
	found := make(map[agentid.Agent]cursorstore.Participant)
	var missing []agentid.Agent
	for _, agent := range agentid.Both {
		p, _, err := cs.LoadParticipant(agent)
		if err != nil {
			missing = append(missing, agent)
			continue
		}
		found[agent] = p
	}
	return found, missing
}
