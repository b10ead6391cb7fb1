package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sirenscope",
	Short: "Discover and enrich companies from the national registries",
	Long: `sirenscope is a pipeline over the two company-registry APIs: the paid
detail/search API and the free public search API.

It discovers 9-digit registration numbers matching sector, geography and
keyword filters, enriches each one with the company's detail record, applies
director and company filters, and exports the rows as CSV, JSON or XLSX.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the CLI. A .env file is honored when present; real
// deployments pass secrets through the process environment.
func Execute() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return log
}

// requireAPIKey aborts before any network call when the paid-API credential
// is missing.
func requireAPIKey(log *zap.Logger) string {
	key := os.Getenv("PAPPERS_API_KEY")
	if key == "" {
		log.Fatal("PAPPERS_API_KEY is required (set it in the environment or in a .env file)")
	}
	return key
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext(log *zap.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received interrupt signal, shutting down")
		cancel()
	}()

	return ctx
}
