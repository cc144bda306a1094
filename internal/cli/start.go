package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/collab"
	"github.com/agusx1211/claodex/internal/cursorstore"
	"github.com/agusx1211/claodex/internal/pane"
	"github.com/agusx1211/claodex/internal/repl"
	"github.com/agusx1211/claodex/internal/replui"
	"github.com/agusx1211/claodex/internal/router"
)

const registrationPollTimeout = 30 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch both agent panes and the router REPL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLaunch(cmd, args, false)
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach the router REPL to already-registered agent panes",
	Long: `attach is for resuming a workspace after claodex itself crashed or
was closed: it relaunches both agent processes from the workspace's
config-file defaults and lets each agent's own session-resumption flag
(configured per-agent in .claodex/config.json) pick the conversation back
up, while the Router and State Store reload cursors from disk and resume
without re-delivering anything already delivered (spec.md's crash-survival
guarantee).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLaunch(cmd, args, true)
	},
}

func init() {
	rootCmd.AddCommand(startCmd, attachCmd)
}

func runLaunch(cmd *cobra.Command, args []string, attach bool) error {
	root, err := currentWorkspaceRoot()
	if err != nil {
		return err
	}
	w, err := openWiring(root)
	if err != nil {
		return err
	}

	if attach {
		_, missing := bothRegistered(w.cs)
		if len(missing) > 0 {
			return fmt.Errorf("attach requires both agents already registered, missing: %v", missing)
		}
	}

	panes := pane.NewManager()
	defer panes.Close()

	for _, agent := range agentid.Both {
		defaults := w.cfg.Agents[agent]
		if defaults.Command == "" {
			return fmt.Errorf("no configured command for agent %s (set agents.%s.command in .claodex/config.json)", agent, agent)
		}
		p, err := pane.Start(agent, defaults.Command, defaults.Args, root)
		if err != nil {
			return fmt.Errorf("starting %s pane: %w", agent, err)
		}
		panes.Register(agent, p)
		fmt.Fprintf(cmd.OutOrStdout(), "%sstarted%s %s pane: %s\n", colorGreen, colorReset, agent, defaults.Command)
	}

	if !attach {
		if err := waitForRegistration(w.cs); err != nil {
			return err
		}
	}

	r := router.New(w.cs, w.ex, panes, w.bus, w.routerConfig())
	orch := collab.New(r, w.bus, w.routerConfig().TurnTimeout)
	ctrl := repl.New(repl.Config{
		Router:         r,
		Collab:         orch,
		Bus:            w.bus,
		InitialTarget:  agentid.Claude,
		ExchangeLogDir: w.layout.exchangeDir,
	})

	return replui.Run(ctrl)
}

// waitForRegistration blocks until both agents have written a participant
// record, or registrationPollTimeout elapses. Fresh panes register
// themselves asynchronously (typically via a wrapper around the real
// binary calling `claodex register`), so start can't wire a Router until
// both records exist.
func waitForRegistration(cs *cursorstore.Store) error {
	deadline := time.Now().Add(registrationPollTimeout)
	for {
		_, missing := bothRegistered(cs)
		if len(missing) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for registration of: %v", missing)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
