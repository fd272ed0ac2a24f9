package cmd

import (
	"fmt"
	"os"
	"strings"

	"tikpost/internal/app"
	"tikpost/internal/storage"
	"tikpost/pkg/config"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const defaultRedirectURI = "http://localhost:3000/callback"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for tikpost",
	Long:  `Configure TikTok app credentials, create the queue directories and optionally authorize.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("tikpost setup"))

	steps := []struct {
		name string
		fn   func(cmd *cobra.Command) error
	}{
		{"Configuring environment", func(*cobra.Command) error { return configureEnv() }},
		{"Creating directories", createDirectories},
		{"Authorizing", authorizeNow},
	}

	for _, step := range steps {
		if err := step.fn(cmd); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

func configureEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	env := make(map[string]string)

	if err := configureTikTokApp(env); err != nil {
		return err
	}

	if err := configureSecretSource(env); err != nil {
		return err
	}

	return writeEnvFile(env)
}

func configureTikTokApp(env map[string]string) error {
	fmt.Println(infoStyle.Render(`
To create TikTok app credentials:
1. Go to https://developers.tiktok.com/apps
2. Create an app and add the Login Kit and Content Posting API products
3. Register the redirect URI you enter below
4. Copy the Client Key and Client Secret
`))

	clientKey := ""
	redirectURI := defaultRedirectURI
	scopes := "user.info.basic,video.upload"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("TikTok Client Key").
				Value(&clientKey).
				Validate(required("Client Key")),
			huh.NewInput().
				Title("Redirect URI").
				Description("Must match the URI registered for the app").
				Value(&redirectURI).
				Validate(validRedirectURI),
			huh.NewInput().
				Title("Scopes").
				Description("Comma separated").
				Value(&scopes),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	env["TIKTOK_CLIENT_KEY"] = strings.TrimSpace(clientKey)
	env["TIKTOK_REDIRECT_URI"] = strings.TrimSpace(redirectURI)
	env["TIKTOK_SCOPES"] = strings.TrimSpace(scopes)
	return nil
}

func configureSecretSource(env map[string]string) error {
	var useSecretManager bool
	if err := huh.NewConfirm().
		Title("Read the client secret from Google Secret Manager?").
		Description("Otherwise it is stored in .env").
		Value(&useSecretManager).
		Run(); err != nil {
		return err
	}

	if useSecretManager {
		var name string
		if err := huh.NewInput().
			Title("Secret version resource name").
			Placeholder("projects/my-project/secrets/tiktok-client-secret/versions/latest").
			Value(&name).
			Validate(required("Secret name")).
			Run(); err != nil {
			return err
		}
		env["TIKTOK_CLIENT_SECRET_NAME"] = strings.TrimSpace(name)
		return nil
	}

	var secret string
	if err := huh.NewInput().
		Title("TikTok Client Secret").
		EchoMode(huh.EchoModePassword).
		Value(&secret).
		Validate(required("Client Secret")).
		Run(); err != nil {
		return err
	}
	env["TIKTOK_CLIENT_SECRET"] = strings.TrimSpace(secret)
	return nil
}

func writeEnvFile(env map[string]string) error {
	f, err := os.OpenFile(".env", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	order := []string{
		"TIKTOK_CLIENT_KEY",
		"TIKTOK_CLIENT_SECRET",
		"TIKTOK_CLIENT_SECRET_NAME",
		"TIKTOK_REDIRECT_URI",
		"TIKTOK_SCOPES",
	}

	for _, key := range order {
		if val, ok := env[key]; ok && val != "" {
			if _, err := fmt.Fprintf(f, "%s=%s\n", key, val); err != nil {
				return err
			}
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	return nil
}

func createDirectories(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}

	queue := storage.NewLocalStorage(cfg.InboxDir, cfg.DoneDir, cfg.FailedDir, cfg.VideoExtension)
	return runWithSpinner("Created inbox, done and failed directories", queue.EnsureDirectories)
}

func authorizeNow(cmd *cobra.Command) error {
	var authorize bool
	if err := huh.NewConfirm().
		Title("Authorize with TikTok now?").
		Description("Opens the browser to complete the OAuth flow").
		Value(&authorize).
		Run(); err != nil || !authorize {
		return err
	}

	cfg, logger, closeLog, err := loadRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		return err
	}

	client, store := app.BuildClient(cfg, logger, nil)
	if err := runTikTokAuth(cmd.Context(), cfg.RedirectURI, client, store, logger); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("OAuth flow failed: %v", err)))
		fmt.Println(infoStyle.Render("You can retry later with: tikpost auth tiktok"))
	}
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Drop .mp4 files into the inbox directory")
	fmt.Println("  2. Check the credential: tikpost auth status")
	fmt.Println("  3. Run: tikpost run")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validRedirectURI(s string) error {
	_, _, err := callbackAddr(strings.TrimSpace(s))
	return err
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
