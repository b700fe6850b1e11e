package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/spf13/cobra"
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Exit statuses.
const (
	exitFatal      = 1
	exitItemErrors = 2
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	dbPath     string
	schema     string
	verbose    bool
}

func main() {
	var gf globalFlags
	cmdRoot := &cobra.Command{
		Use:           "halprices",
		Short:         "Synchronize wholesale market prices into SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger, _ := newLogger(gf.verbose)
			slog.SetDefault(logger)
		},
	}
	cmdRoot.PersistentFlags().StringVarP(&gf.configFile, "config", "c", "", "YAML configuration file")
	cmdRoot.PersistentFlags().StringVar(&gf.dbPath, "db", "", "SQLite database path")
	cmdRoot.PersistentFlags().StringVar(&gf.schema, "schema", "", "storage schema: flat or catalog")
	cmdRoot.PersistentFlags().BoolVarP(&gf.verbose, "verbose", "v", false, "enable debug logging")

	cmdRoot.AddCommand(cmdSync(&gf))
	cmdRoot.AddCommand(cmdServe(&gf))
	cmdRoot.AddCommand(cmdExport(&gf))
	cmdRoot.AddCommand(cmdVersion())

	if err := cmdRoot.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				slog.Error("halprices failed", slog.Any("error", ee.err))
			}
			os.Exit(ee.code)
		}
		slog.Error("halprices failed", slog.Any("error", err))
		os.Exit(exitFatal)
	}
}

// loadConfig layers defaults, the config file, HAL_* variables and finally
// the global flags that were set explicitly.
func loadConfig(cmd *cobra.Command, gf *globalFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if gf.configFile != "" {
		loaded, err := config.LoadFile(gf.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = gf.dbPath
	}
	if flags.Changed("schema") {
		cfg.Schema = strings.ToLower(gf.schema)
	}
	if flags.Changed("verbose") {
		cfg.Verbose = gf.verbose
	}
	if cfg.Verbose && !gf.verbose {
		logger, _ := newLogger(true)
		slog.SetDefault(logger)
	}
	return cfg, nil
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
