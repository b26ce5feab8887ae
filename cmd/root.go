// Package cmd contains the folio command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/models"
	"github.com/cppla/folio/utils"
)

var (
	cfgFile string
	cfg     config.AppConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Markdown blog with a strict HTML sanitizer",
	Long: `folio serves a Markdown blog whose posts, comments and previews pass
through an allow-list HTML sanitizer.

Example usage:
  folio serve                          # Start the HTTP server
  folio migrate                        # Create or update tables
  folio seed --password s3cret-pass    # Create the admin user and a welcome post
  folio sanitize markdown post.md      # Render a file the way the site would`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/config.yaml)")
}

// initConfig reads configuration without validating it; commands that need
// secrets or the database call bootstrap.
func initConfig() error {
	c, err := config.Read(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = c
	return nil
}

// bootstrap validates the configuration, starts logging and opens the database.
func bootstrap() (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.Set(cfg)
	if err := utils.InitLogger(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := config.InitDatabase(cfg, models.All()...)
	if err != nil {
		return nil, err
	}
	return db, nil
}
