package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered handles and their credits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, closeDB, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		users, err := l.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No registered users.")
			return nil
		}

		var total int64
		for _, u := range users {
			fmt.Printf("  @%-24s %s\n", u.Handle, humanize.Comma(int64(u.Credits)))
			total += int64(u.Credits)
		}
		fmt.Printf("\n%d users, %s credits in total\n", len(users), humanize.Comma(total))
		return nil
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <handle> <amount>",
	Short: "Add credits to a handle",
	Long:  `Add credits to a registered handle. A negative amount removes credits and may leave a negative balance.`,
	Example: `movin grant ali 20
movin grant ali -- -5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		amount, err := safecast.ToInt(parsed)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}

		l, closeDB, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		rec, err := l.GrantCredits(cmd.Context(), args[0], amount)
		if err != nil {
			return fmt.Errorf("failed to grant credits: %w", err)
		}
		fmt.Printf("@%s now has %s credits\n", rec.Handle, humanize.Comma(int64(rec.Credits)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(grantCmd)
}

// openLedger opens an existing database and the ledger stored in it.
func openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	cfg := loadConfig()

	db, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	closeDB := func() { _ = db.Close() }

	s, err := settings.Load(ctx, db)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return ledger.New(db, s), closeDB, nil
}

