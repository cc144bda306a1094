// Package cli wires claodex's Cobra commands: register, start, attach,
// doctor, status, and web. The ANSI color palette, --debug plumbing, and
// RunE/PersistentPreRunE shape all follow internal/cli/root.go's.
package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agusx1211/claodex/internal/buildinfo"
	"github.com/agusx1211/claodex/internal/debug"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"

	styleBoldCyan   = "\033[1;36m"
	styleBoldGreen  = "\033[1;32m"
	styleBoldYellow = "\033[1;33m"
	styleBoldRed    = "\033[1;31m"
	styleBoldWhite  = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "claodex",
	Short: "Route messages between a claude and a codex agent process",
	Long: colorBold + `
   ____ _                 _
  / ___| | __ _  ___   __| | _____  __
 | |   | |/ _` + "`" + ` |/ _ \ / _` + "`" + ` |/ _ \ \/ /
 | |___| | (_| | (_) | (_| |  __/>  <
  \____|_|\__,_|\___/ \__,_|\___/_/\_\` + colorReset + `

  ` + styleBoldCyan + `claodex` + colorReset + ` v` + buildinfo.Current().Version + `

  A two-agent message router: it tails a claude and a codex transcript,
  detects turn completion, and pastes delta responses into the other
  agent's terminal, so the two can collaborate without a human relaying.

` + colorBold + `Getting Started:` + colorReset + `
  claodex register --agent claude --session-file <path> --session-id <id>
  claodex start                    Launch both panes and the router REPL
  claodex attach                   Attach to already-registered panes
  claodex status                   Show cursors, pending watches, metrics
  claodex doctor                   Check workspace registration health
  claodex web                      Serve a local status page over HTTP/WS
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return cmd.Help()
		}
		return runStatus(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.claodex/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "claodex starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
