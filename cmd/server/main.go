package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/config"
	"github.com/sileshop/backend/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Storefront backend for premium Discord bot slots",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(expireCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	log.Debug().Str("version", Version).Msg("Configuration loaded")
	return cfg, nil
}
