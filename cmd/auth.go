package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tikpost/internal/app"
	"tikpost/internal/logging"
	"tikpost/internal/tiktok"
	"tikpost/internal/tokenstore"
	"tikpost/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

const authTimeout = 5 * time.Minute

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the TikTok credential",
	Long:  `Authorize tikpost with TikTok using credentials from .env, or inspect the stored credential.`,
}

var authTikTokCmd = &cobra.Command{
	Use:   "tiktok",
	Short: "Authorize with TikTok (OAuth)",
	Long: `Start a local callback listener on the redirect URI, open the TikTok
authorization page and save the resulting credential to the token file.`,
	RunE: runAuthTikTok,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check configuration and credential status",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authTikTokCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthTikTok(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, closeLog, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		return err
	}

	client, store := app.BuildClient(cfg, logger, nil)
	return runTikTokAuth(ctx, cfg.RedirectURI, client, store, logger)
}

func runTikTokAuth(ctx context.Context, redirectURI string, client *tiktok.Client, store *tokenstore.Store, logger logging.Logger) error {
	addr, path, err := callbackAddr(redirectURI)
	if err != nil {
		return err
	}

	state, err := newState()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	handler := newCallbackHandler(path, state, store, logger)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("OAuth callback server started", "redirectUri", redirectURI)

	authURL := client.AuthCodeURL(state)
	fmt.Println(authInfoStyle.Render("\nOpening browser for TikTok authorization..."))
	fmt.Println(authInfoStyle.Render("If the browser doesn't open, visit:\n" + authURL))

	_ = browser.OpenURL(authURL)

	fmt.Println(authInfoStyle.Render("\nWaiting for authorization..."))

	select {
	case <-handler.done:
		fmt.Println(authSuccessStyle.Render("✓ TikTok authorization complete"))
		fmt.Println(authSuccessStyle.Render("  Token saved to: " + store.Path()))
		return nil

	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()

	case <-time.After(authTimeout):
		return fmt.Errorf("authorization timed out after %s", authTimeout)
	}
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(authInfoStyle.Render("\nTikTok Status:\n"))

	if err := cfg.Validate(); err != nil {
		fmt.Println(authErrorStyle.Render("✗ Config: " + err.Error()))
	} else {
		fmt.Println(authSuccessStyle.Render("✓ Config: client key, secret and redirect URI set"))
	}

	_, store := app.BuildClient(cfg, logging.Discard(), nil)
	cred, err := store.Load(ctx)
	switch {
	case err != nil:
		fmt.Println(authErrorStyle.Render("✗ Credential: " + err.Error()))
	case cred == nil || cred.AccessToken == "":
		fmt.Println(authErrorStyle.Render("✗ Credential: not authorized"))
		fmt.Println(authInfoStyle.Render("  Run: tikpost auth tiktok"))
	case cred.OAuth2().Valid():
		fmt.Println(authSuccessStyle.Render("✓ Credential: access token valid until " + formatExpiry(cred.ExpiresAt)))
	case cred.RefreshToken != "":
		fmt.Println(authWarnStyle.Render("○ Credential: access token expired, it will be refreshed on the next run"))
	default:
		fmt.Println(authErrorStyle.Render("✗ Credential: access token expired and no refresh token stored"))
		fmt.Println(authInfoStyle.Render("  Run: tikpost auth tiktok"))
	}

	if cred != nil {
		if !cred.RefreshExpiresAt.IsZero() {
			fmt.Println(authInfoStyle.Render("  Refresh token expires: " + formatExpiry(cred.RefreshExpiresAt)))
		}
		if cred.OpenID != "" {
			fmt.Println(authInfoStyle.Render("  Open ID: " + cred.OpenID))
		}
		if cred.Scope != "" {
			fmt.Println(authInfoStyle.Render("  Scope: " + cred.Scope))
		}
	}

	fmt.Println()
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format(time.DateTime)
}
