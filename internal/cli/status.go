package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agusx1211/claodex/internal/agentid"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show cursors, pending watches, and the metrics snapshot",
		RunE:    runStatus,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := currentWorkspaceRoot()
	if err != nil {
		return err
	}
	w, err := openWiring(root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %sclaodex%s status\n  %s%s%s\n\n", styleBoldCyan, colorReset, colorDim, root, colorReset)

	for _, agent := range agentid.Both {
		readCursor, _ := w.cs.ReadCursor(agent)
		delivery, _ := w.cs.ReadDelivery(agent)
		fmt.Fprintf(out, "  %-8s read=%-6d delivery=%-6d\n", agent, readCursor, delivery)
	}

	snap := w.bus.Snapshot()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  sent=%d received=%d collab_active=%v", snap.TotalSent, snap.TotalReceived, snap.CollabActive)
	if snap.CollabActive {
		fmt.Fprintf(out, " collab_turns=%d", snap.CollabTurns)
	}
	fmt.Fprintln(out)
	if snap.LastStopReason != "" {
		fmt.Fprintf(out, "  last_stop_reason=%s\n", snap.LastStopReason)
	}

	pending := make([]string, 0, len(snap.PendingWatches))
	for agent, isPending := range snap.PendingWatches {
		if isPending {
			pending = append(pending, agent)
		}
	}
	sort.Strings(pending)
	if len(pending) == 0 {
		fmt.Fprintln(out, "  no pending watches")
	} else {
		fmt.Fprintf(out, "  pending watches: %v\n", pending)
	}
	fmt.Fprintln(out)
	return nil
}
