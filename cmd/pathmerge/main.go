// Command pathmerge builds identifier mapping tables from a warehouse and
// merges pathway documents into a shared canonical graph.
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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	cfg     *config.Config
	log     *logrus.Logger
	flagEnv string
	flagFmt string
	flagLog string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("pathmerge version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("pathmerge version %s", config.Version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "pathmerge",
		Short:   "pathmerge: merge pathway documents into a canonical graph",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagEnv, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table")
	rootCmd.PersistentFlags().StringVar(&flagLog, "log-format", "json", "Log format: json|text")

	versionCmd := newVersionCmd()
	versionCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil } // no config needed

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newBuildMappingsCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newMapCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newExportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// setup loads the env file, the configuration and the logger.
func setup() error {
	if err := godotenv.Load(flagEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", flagEnv, err)
	}

	var err error

	cfg, err = config.Load()
	if err != nil {
		return err
	}

	log, err = newLogger(cfg.LogLevel, flagLog)

	return err
}

func newLogger(level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return l, nil
}
