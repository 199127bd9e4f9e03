package cmd

import (
	"fmt"

	"github.com/jon4hz/movin/internal/ledger"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display the stored keys and a summary of the credit ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		db, err := openDatabase(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
		}
		defer db.Close() //nolint: errcheck

		keys, err := db.Keys(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database keys: %w", err)
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("Path: %s\n", cfg.Database.Path)
		fmt.Printf("Stored Keys: %d\n", len(keys))
		for _, k := range keys {
			fmt.Printf("  %s\n", k)
		}

		active, ok, err := db.Get(cmd.Context(), ledger.ActiveHandleKey)
		if err != nil {
			return fmt.Errorf("failed to read active handle: %w", err)
		}
		if ok && active != "" {
			fmt.Printf("Active Handle: @%s\n", active)
		} else {
			fmt.Println("Active Handle: none")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
