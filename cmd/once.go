package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tikpost/internal/app"
	"tikpost/internal/publish"

	"github.com/spf13/cobra"
)

var onceCaption string

var onceCmd = &cobra.Command{
	Use:   "once <file>",
	Short: "Publish a single video file",
	Long: `Publish one video file outside the inbox workflow. The file is not moved.
Without --caption the configured template and hashtags are used.`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().StringVarP(&onceCaption, "caption", "c", "", "Caption for the post")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("video file: %w", err)
	}

	cfg, logger, closeLog, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	built, err := app.BuildRunner(cfg, logger, nil)
	if err != nil {
		return err
	}

	caption := onceCaption
	if caption == "" {
		caption = app.BuildCaption(filepath.Base(path), cfg.DefaultCaptionTemplate, cfg.DefaultHashtags)
	}

	logger.Info("Processing file", "fileName", filepath.Base(path), "caption", caption)
	outcome, err := built.Publisher.ProcessFile(ctx, path, caption)
	if err != nil {
		return err
	}

	switch outcome.Result {
	case publish.Failed:
		return fmt.Errorf("%w: %s", app.ErrPublishFailed, outcome.Status)
	case publish.TimedOut:
		logger.Warn("Publish status still pending", "publishId", outcome.PublishID, "note", "status polling timeout")
	default:
		logger.Info("Publish completed", "publishId", outcome.PublishID)
	}
	return nil
}
