package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/folio/routes"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server on app.port. SIGINT and SIGTERM drain in-flight
requests; SIGUSR2 hands the listener to a fresh process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	ctx := cmd.Context()
	utils.StartMediaCleaner(ctx, db, cfg.Media.Dir, 30*time.Minute)

	content := services.NewContentService(cfg.Sanitizer, cfg.Site)
	r := routes.SetupRouter(cfg, db, content)

	utils.Sugar.Infow("starting server", "port", cfg.App.Port, "driver", cfg.Database.Driver, "markdown_engine", cfg.Sanitizer.MarkdownEngine)
	return utils.GraceServer(ctx, ":"+cfg.App.Port, r)
}
