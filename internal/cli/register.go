package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/cursorstore"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Write a participant record for one agent (spec.md §6.5)",
	Long: `register stands in for the agent-side registration hook: it writes
the participant record the core reads to locate an agent's transcript and
pane. In production this is called once per agent process at startup
(typically from a wrapper script around the real 'claude'/'codex' binary).`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().String("agent", "", "claude or codex")
	registerCmd.Flags().String("session-file", "", "absolute path to the agent's JSONL transcript")
	registerCmd.Flags().String("session-id", "", "the agent's own session identifier")
	registerCmd.Flags().String("pane-handle", "", "an opaque identifier for the agent's terminal pane")
	registerCmd.Flags().String("cwd", "", "the agent's working directory (defaults to the current directory)")
	_ = registerCmd.MarkFlagRequired("agent")
	_ = registerCmd.MarkFlagRequired("session-file")
	_ = registerCmd.MarkFlagRequired("session-id")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	agentFlag, _ := cmd.Flags().GetString("agent")
	agent, err := agentid.Parse(agentFlag)
	if err != nil {
		return err
	}
	sessionFile, _ := cmd.Flags().GetString("session-file")
	sessionID, _ := cmd.Flags().GetString("session-id")
	paneHandle, _ := cmd.Flags().GetString("pane-handle")
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd == "" {
		cwd, err = currentWorkspaceRoot()
		if err != nil {
			return err
		}
	}

	root, err := currentWorkspaceRoot()
	if err != nil {
		return err
	}
	layout := layoutFor(root)
	cs, err := cursorstore.New(layout.stateDir)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	p := cursorstore.Participant{
		Agent:        agent,
		SessionFile:  sessionFile,
		SessionID:    sessionID,
		PaneHandle:   paneHandle,
		CWD:          cwd,
		RegisteredAt: time.Now().UTC(),
	}
	if err := cs.SaveParticipant(p); err != nil {
		return fmt.Errorf("saving participant record: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sregistered%s %s (session=%s)\n", colorGreen, colorReset, agent, sessionID)
	return nil
}
