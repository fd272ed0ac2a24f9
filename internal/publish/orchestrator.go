// Package publish drives one video file through upload init, byte transfer
// and status polling until the provider reports a terminal state or the
// poll budget runs out.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"tikpost/internal/logging"
	"tikpost/internal/tiktok"
)

const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 5 * time.Second
)

// TokenProvider hands out a bearer token that is valid for the next call.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context) (string, error)
}

// API is the subset of the provider client the orchestrator drives.
type API interface {
	InitUpload(ctx context.Context, accessToken string, req tiktok.InitRequest) (*tiktok.Session, error)
	UploadVideo(ctx context.Context, uploadURL string, video io.Reader, size int64) error
	FetchStatus(ctx context.Context, accessToken, publishID string) (json.RawMessage, error)
}

// Outcome is the terminal, immutable result of one attempt. For TimedOut,
// Status is the last payload observed.
type Outcome struct {
	Result    Result
	PublishID string
	Status    json.RawMessage
}

type Options struct {
	PrivacyLevel string
	PollAttempts int
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       logging.Logger
}

type Orchestrator struct {
	api          API
	tokens       TokenProvider
	privacyLevel string
	pollAttempts int
	pollInterval time.Duration
	clock        clockwork.Clock
	logger       logging.Logger
}

func NewOrchestrator(api API, tokens TokenProvider, opts Options) *Orchestrator {
	o := &Orchestrator{
		api:          api,
		tokens:       tokens,
		privacyLevel: opts.PrivacyLevel,
		pollAttempts: opts.PollAttempts,
		pollInterval: opts.PollInterval,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}

	if o.privacyLevel == "" {
		o.privacyLevel = tiktok.PrivacySelfOnly
	}
	if o.pollAttempts <= 0 {
		o.pollAttempts = DefaultPollAttempts
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	return o
}

// ProcessFile uploads filePath with caption and polls its publish status.
// Errors from init, transfer or a status fetch abort the attempt and are
// returned unchanged; a timeout is reported as an Outcome, not an error.
func (o *Orchestrator) ProcessFile(ctx context.Context, filePath, caption string) (*Outcome, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat video file: %w", err)
	}
	size := info.Size()

	session, err := o.initUpload(ctx, caption, size)
	if err != nil {
		return nil, err
	}

	if err := o.api.UploadVideo(ctx, session.UploadURL, file, size); err != nil {
		return nil, err
	}
	o.logger.Info("Upload completed", "publishId", session.PublishID, "bytes", size)

	return o.poll(ctx, session.PublishID)
}

func (o *Orchestrator) initUpload(ctx context.Context, caption string, size int64) (*tiktok.Session, error) {
	token, err := o.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	session, err := o.api.InitUpload(ctx, token, tiktok.InitRequest{
		Title:        caption,
		PrivacyLevel: o.privacyLevel,
		VideoSize:    size,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Debug("Upload session opened", "publishId", session.PublishID)
	return session, nil
}

func (o *Orchestrator) poll(ctx context.Context, publishID string) (*Outcome, error) {
	var last json.RawMessage

	for attempt := 1; attempt <= o.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.clock.After(o.pollInterval):
		}

		token, err := o.tokens.EnsureAccessToken(ctx)
		if err != nil {
			return nil, err
		}

		last, err = o.api.FetchStatus(ctx, token, publishID)
		if err != nil {
			return nil, err
		}
		o.logger.Info("Fetched publish status", "publishId", publishID, "attempt", attempt, "status", string(last))

		if result := Classify(last); result != Pending {
			return &Outcome{Result: result, PublishID: publishID, Status: last}, nil
		}
	}

	return &Outcome{Result: TimedOut, PublishID: publishID, Status: last}, nil
}
