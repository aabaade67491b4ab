package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/forumport/internal/api"
	"github.com/persistorai/forumport/internal/config"
	"github.com/persistorai/forumport/internal/migration"
	"github.com/persistorai/forumport/internal/source"
	"github.com/persistorai/forumport/internal/store"
	"github.com/persistorai/forumport/internal/ws"
)

func newRunCmd() *cobra.Command {
	var (
		dryRun  bool
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import the export into the destination database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if err := cfg.RequireSource(); err != nil {
				return err
			}

			if !dryRun {
				if err := cfg.RequireDatabase(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate && !dryRun {
				if err := store.Migrate(ctx, cfg.DatabaseURL.Value(), log); err != nil {
					return err
				}
			}

			opts := pipelineOptions(cfg)
			opts.DryRun = dryRun

			return runPipeline(ctx, cmd, cfg, log, opts)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Load and remap only; do not touch the destination")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the destination schema before importing")

	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the export and print what an import would do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if err := cfg.RequireSource(); err != nil {
				return err
			}

			p := migration.New(log, pipelineOptions(cfg), nil)

			report, err := p.Check(cmd.Context())
			if report != nil {
				if ferr := writeReport(cmd.OutOrStdout(), report.Snapshot(), flagFmt); ferr != nil {
					return ferr
				}
			}

			return err
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or upgrade the destination tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			return store.Migrate(cmd.Context(), cfg.DatabaseURL.Value(), log)
		},
	}
}

// pipelineOptions maps configuration onto the pipeline's options.
func pipelineOptions(cfg *config.Config) migration.Options {
	return migration.Options{
		Source: source.Options{
			Dir:                 cfg.SourceDir,
			Encoding:            cfg.SourceEncoding,
			GroupMappingPath:    cfg.MappingPath(cfg.GroupMapping),
			CategoryMappingPath: cfg.MappingPath(cfg.CategoryMapping),
			UsernameMinLength:   cfg.UsernameMinLength,
			UsernameMaxLength:   cfg.UsernameMaxLength,
		},
		DatabaseURL: cfg.DatabaseURL.Value(),
		Store: store.Options{
			MaxConns:     cfg.DBMaxConns,
			SearchLocale: cfg.SearchLocale,
		},
		Workers:       cfg.Workers,
		BatchSize:     cfg.BatchSize,
		PostBatchSize: cfg.PostBatchSize,
		BaseURL:       cfg.BaseURL,
	}
}

// runPipeline runs the import, with the status server alongside it when one
// is configured.
func runPipeline(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logrus.Logger, opts migration.Options) error {
	var pub migration.Publisher

	var hub *ws.Hub

	if cfg.StatusAddr != "" {
		hub = ws.NewHub(log)
		pub = hub
	}

	p := migration.New(log, opts, pub)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	serverDone := make(chan struct{})
	close(serverDone)

	if hub != nil {
		serverDone = startStatusServer(serverCtx, cfg, log, hub, p)
	}

	report, err := p.Run(ctx)

	stopServer()
	<-serverDone

	if report != nil {
		if ferr := writeReport(cmd.OutOrStdout(), report.Snapshot(), flagFmt); ferr != nil {
			return ferr
		}
	}

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// startStatusServer serves health, report and progress on the loopback
// status address. The returned channel closes once the server and hub have
// stopped.
func startStatusServer(ctx context.Context, cfg *config.Config, log *logrus.Logger, hub *ws.Hub, p *migration.Pipeline) chan struct{} {
	deps := &api.RouterDeps{
		Log:         log,
		Hub:         hub,
		Reports:     p,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
	}

	var health interface{ Close() }

	if cfg.DatabaseURL.Value() != "" {
		s, err := store.Open(ctx, cfg.DatabaseURL.Value(), log, store.Options{MaxConns: 1})
		if err != nil {
			log.WithError(err).Warn("status server: database health unavailable")
		} else {
			deps.Store = s
			health = s
		}
	}

	done := make(chan struct{})

	go hub.Run(ctx)

	go func() {
		defer close(done)

		if err := api.Serve(ctx, cfg.StatusAddr, api.NewRouter(ctx, deps), log); err != nil {
			log.WithError(err).Error("status server stopped")
		}

		hub.Shutdown()

		if health != nil {
			health.Close()
		}
	}()

	return done
}
