package cmd

import (
	"fmt"
	"os"

	"telgen/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	logFile    string
	listenAddr string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "telgen [SCRIPT]",
	Short: "Generates and logs endpoint activity",
	Long: `telgen reads activity commands from SCRIPT, or interactively from stdin,
performs them on this host and appends a record of each to the activity log.

Commands:
  SPAWN <program> [args...]
  FILE NEW|DEL|MOD <path> [data]
  NET <src ip:port> <dst ip:port> [data]`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAgent,
}

// Execute runs the root command. Errors are reported on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "file where endpoint activity is logged (default telemetry.log)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug diagnostics on stderr")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "serve the live activity feed on this address")
}

// loadDotEnv populates the environment from ./.env when present.
func loadDotEnv() {
	_ = godotenv.Load()
}

// loadConfig resolves the configuration: defaults, config file, environment,
// then flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("logfile") {
		cfg.LogFile = logFile
	}
	if flags.Changed("listen") {
		cfg.Listen = listenAddr
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
