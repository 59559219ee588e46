package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"robo-backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "robo",
	Short:         "ROBO AI voice assistant backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, sayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal("✗ " + err.Error())
	}
}

// loadConfig reads configuration and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setLogLevel(cfg.LogLevel)
	log.Debug("✓ Environment variables loaded")
	return cfg, nil
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn("Unknown LOG_LEVEL, using info", "level", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)
	log.SetOutput(os.Stderr)
}
