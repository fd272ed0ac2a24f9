// Package app runs one batch: it walks the inbox, publishes each candidate
// and files it into done or failed.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"tikpost/internal/logging"
	"tikpost/internal/publish"
	"tikpost/internal/storage"
)

// ErrPublishFailed marks a file whose publish status came back failed.
var ErrPublishFailed = errors.New("publish status reported failure")

const timeoutNote = "status polling timeout"

type Publisher interface {
	ProcessFile(ctx context.Context, filePath, caption string) (*publish.Outcome, error)
}

type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	TimedOut  int
	Failed    int
}

type RunnerOptions struct {
	Queue           storage.Queue
	Publisher       Publisher
	MaxPerRun       int
	CaptionTemplate string
	Hashtags        []string
	Logger          logging.Logger
}

type Runner struct {
	queue           storage.Queue
	publisher       Publisher
	maxPerRun       int
	captionTemplate string
	hashtags        []string
	logger          logging.Logger
}

func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		queue:           opts.Queue,
		publisher:       opts.Publisher,
		maxPerRun:       opts.MaxPerRun,
		captionTemplate: opts.CaptionTemplate,
		hashtags:        opts.Hashtags,
		logger:          opts.Logger,
	}
	if r.captionTemplate == "" {
		r.captionTemplate = filenamePlaceholder
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

// Run processes up to MaxPerRun inbox files strictly in order. Per-file
// failures are logged and counted; only a failure to list the inbox is
// returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	logger := runLogger{Logger: r.logger, runID: runID}

	candidates, err := r.queue.ListCandidates(r.maxPerRun)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	logger.Info("Start batch run", "maxPerRun", r.maxPerRun, "targetCount", len(candidates))

	summary := &Summary{RunID: runID, Total: len(candidates)}
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			logger.Warn("Batch run interrupted", "error", err)
			break
		}
		r.processOne(ctx, logger, path, summary)
	}

	logger.Info("Batch run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"timedOut", summary.TimedOut,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (r *Runner) processOne(ctx context.Context, logger logging.Logger, path string, summary *Summary) {
	fileName := filepath.Base(path)
	caption := BuildCaption(fileName, r.captionTemplate, r.hashtags)
	logger.Info("Processing file", "fileName", fileName, "caption", caption)

	outcome, err := r.publisher.ProcessFile(ctx, path, caption)
	if err == nil && outcome.Result == publish.Failed {
		err = fmt.Errorf("%w: %s", ErrPublishFailed, outcome.Status)
	}
	if err == nil {
		moved, relocErr := r.queue.Relocate(path, r.queue.DoneDir())
		if relocErr == nil {
			attrs := []any{"from", path, "to", moved, "publishId", outcome.PublishID}
			if outcome.Result == publish.TimedOut {
				attrs = append(attrs, "note", timeoutNote)
				summary.TimedOut++
			} else {
				summary.Succeeded++
			}
			logger.Info("File moved to done", attrs...)
			return
		}
		err = relocErr
	}

	summary.Failed++
	moved, relocErr := r.queue.Relocate(path, r.queue.FailedDir())
	if relocErr != nil {
		logger.Error("File processing failed", "fileName", fileName, "error", err.Error(), "relocateError", relocErr.Error())
		return
	}
	logger.Error("File processing failed", "fileName", fileName, "error", err.Error(), "movedTo", moved)
}

// runLogger tags every record with the batch's run_id.
type runLogger struct {
	logging.Logger
	runID string
}

func (l runLogger) with(args []any) []any {
	return append([]any{"run_id", l.runID}, args...)
}

func (l runLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.with(args)...) }
func (l runLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.with(args)...) }
func (l runLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.with(args)...) }
func (l runLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.with(args)...) }
