package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appguard-lab/internal/streaming"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow scan progress published over NATS",
	Long: `Follow the progress of scans run by the API server or other appguard
clients. Requires NATS to be enabled. --device limits the output to one
device.`,
	Args: cobra.NoArgs,
	RunE: watchCommand,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.cfg.NATS.Enabled {
		return fmt.Errorf("watch needs NATS: set nats.enabled")
	}

	nats, err := streaming.NewNATSPublisher(ctx, e.cfg.NATS, e.log)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nats.Close()

	events, err := nats.Subscribe(ctx, &streaming.Subscription{DeviceID: deviceID})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for event := range events {
		if err := emit(out, event, func(w io.Writer) {
			renderEvent(w, event)
		}); err != nil {
			return err
		}
	}
	return nil
}
