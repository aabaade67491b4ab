package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/forumport/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	flagConfig  string
	flagEnvFile string
	flagFmt     string
	flagSource  string
	flagWorkers int
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("forumport version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}

	return fmt.Sprintf("forumport version %s", config.Version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "forumport",
		Short:         "Bulk import of a vBulletin export into a Discourse database",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (.yaml, .yml or .toml); environment variables override it")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Dotenv file loaded before configuration; missing files are ignored")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "table", "Report format: table|json")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "Export directory (overrides SOURCE_DIR)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Worker count for the rewrite and search phases (overrides WORKERS)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file and the configuration, applies flag
// overrides, and builds the logger the configuration describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("loading %s: %w", flagEnvFile, err)
		}
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()

	if flags.Changed("source") {
		cfg.SourceDir = flagSource
	}

	if flags.Changed("workers") {
		if flagWorkers < 1 || flagWorkers > config.MaxWorkers {
			return nil, nil, fmt.Errorf("--workers must be between 1 and %d", config.MaxWorkers)
		}

		cfg.Workers = flagWorkers
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

func newLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}
