package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export webhook definitions to YAML",
	Long: `Export all webhook and incoming webhook definitions as YAML.

The output is the same format "hookline import" and the seed file accept.
Secret keys are included; treat the output accordingly.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	defs, err := webhooks.NewStore(db).List(ctx)
	if err != nil {
		return fmt.Errorf("listing webhooks: %w", err)
	}

	hooks, err := webhooks.NewIncomingStore(db).List(ctx)
	if err != nil {
		return fmt.Errorf("listing incoming webhooks: %w", err)
	}

	seed := webhooks.SeedFile{Webhooks: defs, Incoming: hooks}
	data, err := yaml.Marshal(&seed)
	if err != nil {
		return fmt.Errorf("encoding definitions: %w", err)
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", exportOutput, err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d webhooks and %d incoming webhooks to %s\n",
		len(defs), len(hooks), exportOutput)
	return nil
}
