package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jon4hz/movin/internal/settings"
	"github.com/spf13/cobra"
)

var settingsCmdFlags struct {
	Set string
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the application settings",
	Long:  `Print the effective settings as JSON. With --set, a partial settings object is merged first.`,
	Example: `movin settings
movin settings --set '{"freeLimit": 5, "themeMode": "dark"}'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		db, err := openDatabase(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
		}
		defer db.Close() //nolint:errcheck

		store, err := settings.Load(cmd.Context(), db)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		current := store.Current()
		if settingsCmdFlags.Set != "" {
			var patch settings.Patch
			if err := json.Unmarshal([]byte(settingsCmdFlags.Set), &patch); err != nil {
				return fmt.Errorf("invalid settings %q: %w", settingsCmdFlags.Set, err)
			}
			current, err = store.Update(cmd.Context(), patch)
			if err != nil {
				return fmt.Errorf("failed to update settings: %w", err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(current)
	},
}

func init() {
	settingsCmd.Flags().StringVar(&settingsCmdFlags.Set, "set", "", "Partial settings object to merge, as JSON")
	rootCmd.AddCommand(settingsCmd)
}
