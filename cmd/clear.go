package cmd

import (
	"fmt"

	"tikpost/internal/app"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored TikTok credential",
	Long:  `Delete the saved token file. Run "tikpost auth tiktok" afterwards to authorize again.`,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation")
	authCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, closeLog, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	if !clearForce {
		var confirm bool
		if err := huh.NewConfirm().
			Title("Remove stored credential?").
			Description(cfg.TokensFile).
			Value(&confirm).
			Run(); err != nil {
			return err
		}
		if !confirm {
			fmt.Println(infoStyle.Render("Kept existing credential"))
			return nil
		}
	}

	_, store := app.BuildClient(cfg, logger, nil)
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	fmt.Println(successStyle.Render("✓ Credential removed"))
	return nil
}
