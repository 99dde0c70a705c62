package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dopemux/codesearch/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	cfgPath  string
	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:     "codesearch",
		Short:   "Hybrid code search: chunk, embed, and index a workspace",
		Version: fmt.Sprintf("%s (built %s)", version, buildTime),
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "codesearch.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (trace, debug, info, warn, error)")

	root.AddCommand(serveCmd(), indexCmd(), searchCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and builds the logger. Logs go to
// stderr; stdout is reserved for command output and the MCP protocol.
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	return cfg, logger, nil
}
