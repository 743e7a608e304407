package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/streaming"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan every app of a device",
	Long: `Run a full scan over the imported inventory of a device, printing one
progress line per app followed by a summary. Ctrl-C cancels the scan and
prints the partial summary.

When NATS is enabled the progress is also published for "appguard watch".`,
	Args: cobra.NoArgs,
	RunE: scanCommand,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <package>",
	Short: "Analyze a single app of a device",
	Args:  cobra.ExactArgs(1),
	RunE:  analyzeCommand,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	if err := requireDevice(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var publisher services.ScanEventPublisher
	if e.cfg.NATS.Enabled {
		nats, err := streaming.NewNATSPublisher(ctx, e.cfg.NATS, e.log)
		if err != nil {
			e.log.Warn().Err(err).Msg("NATS unavailable, progress will not be published")
		} else {
			bus := streaming.NewEventBus(nats, e.log)
			defer bus.Close()
			publisher = streaming.NewEventBusPublisher(bus)
		}
	}

	orchestrator := services.NewOrchestrator(e.inventory, e.analyzer(), e.cfg.Scan.MaxApps, publisher, e.log)
	summary, err := runScan(ctx, orchestrator, cmd.OutOrStdout())
	if summary == nil {
		return err
	}

	if emitErr := emit(cmd.OutOrStdout(), summary, func(w io.Writer) {
		renderSummary(w, summary)
	}); emitErr != nil {
		return emitErr
	}
	return err
}

// runScan starts a scan and prints its progress until it finishes
func runScan(ctx context.Context, orchestrator *services.Orchestrator, out io.Writer) (*models.ScanSummary, error) {
	task := orchestrator.Start(ctx, deviceID)
	for p := range task.Events() {
		if !jsonOutput {
			renderProgress(out, p)
		}
	}
	return task.Wait()
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	if err := requireDevice(); err != nil {
		return err
	}

	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	app, err := e.inventory.GetApp(cmd.Context(), deviceID, args[0])
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("%w: %s", services.ErrAppNotFound, args[0])
	}

	result, err := e.analyzer().Analyze(cmd.Context(), *app)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return emit(cmd.OutOrStdout(), result, func(w io.Writer) {
		renderAnalysis(w, result)
	})
}
