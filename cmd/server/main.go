// Command alchemist runs the validation service and its offline tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"data-alchemist/backend/internal/config"
	"data-alchemist/backend/internal/logging"
)

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "alchemist",
	Short:         "Validate client, worker and task data before allocation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./config.yaml or ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadRuntime reads configuration and builds the logger it describes.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
