package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import webhook definitions from YAML",
	Long: `Import webhook and incoming webhook definitions from a YAML file.

Definitions are matched by name (incoming endpoints by path); existing
ones are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	seeder := webhooks.NewSeeder(webhooks.NewStore(db), webhooks.NewIncomingStore(db), args[0])
	return seeder.Load(context.Background())
}
