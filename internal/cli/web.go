package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/spf13/cobra"

	"github.com/agusx1211/claodex/internal/statusweb"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve a local status page over HTTP/WebSocket",
	Long: `web starts a small local server streaming the Event Bus metrics
snapshot, for a browser tab or a phone (via --qr) to watch a session live.
It carries no dashboard UI of its own; it's the transport such a UI would
sit behind.`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().String("addr", "127.0.0.1:0", "address to bind (host:port, port 0 picks one)")
	webCmd.Flags().Bool("mdns", false, "advertise the server on the LAN via mDNS")
	webCmd.Flags().Bool("qr", false, "print a QR code encoding the status page URL")
	rootCmd.AddCommand(webCmd)
}

func runWeb(cmd *cobra.Command, args []string) error {
	root, err := currentWorkspaceRoot()
	if err != nil {
		return err
	}
	w, err := openWiring(root)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	srv, err := statusweb.New(w.bus, addr)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sserving%s %s\n", colorGreen, colorReset, srv.URL())

	enableQR, _ := cmd.Flags().GetBool("qr")
	if enableQR {
		if err := statusweb.PrintQRCode(srv.URL()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	enableMDNS, _ := cmd.Flags().GetBool("mdns")
	var mdnsServer *mdns.Server
	if enableMDNS {
		_, port, splitErr := splitHostPort(srv.Addr())
		if splitErr == nil {
			mdnsServer, err = statusweb.Advertise(filepath.Base(root), port, srv.URL())
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: mDNS advertisement failed: %v\n", err)
			} else {
				defer mdnsServer.Shutdown()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
