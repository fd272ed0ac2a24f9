package app

import (
	"github.com/jonboulle/clockwork"

	"tikpost/internal/logging"
	"tikpost/internal/publish"
	"tikpost/internal/storage"
	"tikpost/internal/tiktok"
	"tikpost/internal/tokenstore"
	"tikpost/pkg/config"
	"tikpost/pkg/httputil"
)

type BuildResult struct {
	Runner    *Runner
	Publisher *publish.Orchestrator
	Client    *tiktok.Client
	Tokens    *tokenstore.Store
	Storage   *storage.LocalStorage
}

// BuildClient wires the provider client and credential store; auth
// commands need nothing else. A nil clock means real time.
func BuildClient(cfg *config.Config, logger logging.Logger, clock clockwork.Clock) (*tiktok.Client, *tokenstore.Store) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	httpClient := httputil.NewClient(cfg.HTTPTimeout)
	client := tiktok.NewClient(tiktok.Options{
		ClientKey:    cfg.ClientKey,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.ScopeList(),
		APIBase:      cfg.APIBase,
		HTTPClient:   httpClient,
		RetryClient:  httputil.NewRetryClient(httpClient, httputil.DefaultRetryConfig()),
	})

	store := tokenstore.New(cfg.TokensFile, client,
		tokenstore.WithClock(clock),
		tokenstore.WithLogger(logger),
	)
	return client, store
}

// BuildRunner validates cfg and assembles the batch runner.
func BuildRunner(cfg *config.Config, logger logging.Logger, clock clockwork.Clock) (*BuildResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	client, store := BuildClient(cfg, logger, clock)

	localStorage := storage.NewLocalStorage(cfg.InboxDir, cfg.DoneDir, cfg.FailedDir, cfg.VideoExtension)
	if err := localStorage.EnsureDirectories(); err != nil {
		return nil, err
	}

	orchestrator := publish.NewOrchestrator(client, store, publish.Options{
		PrivacyLevel: cfg.PrivacyLevel,
		PollAttempts: cfg.PollAttempts,
		PollInterval: cfg.PollInterval,
		Clock:        clock,
		Logger:       logger,
	})

	runner := NewRunner(RunnerOptions{
		Queue:           localStorage,
		Publisher:       orchestrator,
		MaxPerRun:       cfg.MaxPerRun,
		CaptionTemplate: cfg.DefaultCaptionTemplate,
		Hashtags:        cfg.DefaultHashtags,
		Logger:          logger,
	})

	return &BuildResult{
		Runner:    runner,
		Publisher: orchestrator,
		Client:    client,
		Tokens:    store,
		Storage:   localStorage,
	}, nil
}
