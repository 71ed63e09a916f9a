package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/config"
)

var cfg *config.Config

// Persistent overrides applied on top of the loaded configuration.
var (
	configFile  string
	storeDriver string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "lead-pipeline",
	Short: "Find, score and catalog GTB/GTEB building-automation leads",
	Long: `lead-pipeline searches public tender boards, business directories, job boards
and OpenStreetMap for building-management (GTB/GTEB) opportunities in Morocco,
France and Canada. Every record is normalized, enriched with contact details,
scored 0-100 and merged into a deduplicated catalog.

Settings come from config.yaml (or --config) and LEADS_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "path to a YAML config file (default ./config.yaml when present)")
	pf.StringVar(&storeDriver, "store", "", "lead catalog backend: postgres, sqlite or memory (overrides store.driver)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log.level)")
}

// setup loads configuration, applies command-line overrides and installs the
// global logger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFile(configFile)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	applyOverrides(c)

	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	cfg = c

	zap.L().Debug("config loaded",
		zap.String("command", cmd.Name()),
		zap.String("store", c.Store.Driver),
		zap.Strings("countries", c.Sources.Countries),
	)
	return nil
}

func applyOverrides(c *config.Config) {
	if storeDriver != "" {
		c.Store.Driver = storeDriver
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
