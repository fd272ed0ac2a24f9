package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tikpost/internal/app"
	"tikpost/internal/logging"
	"tikpost/pkg/config"

	"github.com/spf13/cobra"
)

var runMaxPerRun int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish the next batch of inbox videos",
	Long: `Take up to max_per_run videos from the inbox, publish each one and move it
to done or failed. Per-file failures are logged; only configuration, credential
store or inbox listing failures make the command exit non-zero.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().IntVarP(&runMaxPerRun, "max", "n", 0, "Override max_per_run for this batch")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, closeLog, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	if runMaxPerRun > 0 {
		cfg.MaxPerRun = runMaxPerRun
	}

	built, err := app.BuildRunner(cfg, logger, nil)
	if err != nil {
		logger.Error("Fatal error in batch run", "error", err)
		return err
	}

	summary, err := built.Runner.Run(ctx)
	if err != nil {
		logger.Error("Fatal error in batch run", "error", err)
		return err
	}

	slog.Debug("Batch summary", "run_id", summary.RunID, "total", summary.Total)
	return nil
}

// loadRuntime loads configuration and opens the file-backed logger. The
// returned func closes the log file.
func loadRuntime(ctx context.Context) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.LogDir, logLevel(), time.Now())
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, func() { _ = closer.Close() }, nil
}
