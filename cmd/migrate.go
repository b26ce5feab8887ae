package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/folio/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	Long: `Run additive AutoMigrate for users, posts, comments and media.
Columns are added, never dropped.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// bootstrap migrates on open
	if _, err := bootstrap(); err != nil {
		return err
	}
	utils.Sugar.Infow("migration complete", "driver", cfg.Database.Driver, "database", cfg.Database.Name)
	cmd.Println("migration complete")
	return nil
}
