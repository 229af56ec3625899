package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hugin/internal/config"
	"hugin/internal/logging"
)

const defaultConfigPath = "~/.hugin/config.yaml"

var (
	// Global flags
	configPath string
	logToFile  bool
	verbosity  int
	noWarn     bool

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hugin",
	Short: "Find code cloned from library example sketches",
	Long: `hugin runs the CCFinderSW clone detector over pairs of files, a project
source file and an example sketch shipped inside a library archive, and
reports the code fragments the two have in common.

A session file names a project directory and a directory of job files; each
job file names one project source, one example sketch and the library archive
that contains it.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&logToFile, "log", "l", false, "Also write logs to hugin.log")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&noWarn, "no-warn", "q", false, "Only log errors")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env and the configuration file and initialises logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	path, err := config.ExpandPath(configPath)
	if err != nil {
		return err
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	applyLogFlags(loaded)
	if err := loaded.Logging.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(loaded.Logging.ToLogging()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = loaded
	logging.BootDebug("configuration loaded from %s", path)
	return nil
}

// applyLogFlags lets the command line override the configured log level.
func applyLogFlags(c *config.Config) {
	switch {
	case noWarn:
		c.Logging.Level = "error"
	case verbosity >= 2:
		c.Logging.Level = "debug"
	case verbosity == 1:
		c.Logging.Level = "info"
	}
	if logToFile {
		c.Logging.File = "hugin.log"
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
