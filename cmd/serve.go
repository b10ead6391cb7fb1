package cmd

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sirenscope/internal/handlers"
)

var (
	port     string
	serveDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the export artifacts over HTTP",
	Long: `Start a small web server that lists the export artifacts in the output
directory and lets clients download them.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		// Use PORT env var if set, otherwise use flag value
		if envPort := os.Getenv("PORT"); envPort != "" && port == "8080" {
			port = envPort
		}

		if _, err := os.Stat(serveDir); err != nil {
			log.Fatal("export directory is not readable", zap.String("dir", serveDir), zap.Error(err))
		}

		app := fiber.New(fiber.Config{
			AppName: "sirenscope",
		})

		app.Use(logger.New())

		app.Get("/", handlers.ExportsIndexHandler(serveDir))
		app.Get("/exports/:name", handlers.ExportDownloadHandler(serveDir))

		log.Info("starting server", zap.String("port", port), zap.String("dir", serveDir))
		if err := app.Listen(":" + port); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
	serveCmd.Flags().StringVar(&serveDir, "dir", "output", "Directory holding the export artifacts")
}
