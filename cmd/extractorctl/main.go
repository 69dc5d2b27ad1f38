// extractorctl is an operator CLI for the document-to-catalog extraction
// pipeline: schema migrations and stage replay for stuck extractions. It
// talks to the same Postgres and Kafka infrastructure as the apiserver and
// worker binaries but never runs a long-lived server loop itself.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/shipcat-extractor/internal/application/pipeline"
	"github.com/turtacn/shipcat-extractor/internal/config"
	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres/repositories"
	kafkainfra "github.com/turtacn/shipcat-extractor/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

const defaultExtractorctlConfigPath = "configs/config.yaml"

// cliContext bundles the loaded configuration and logger every subcommand
// needs. It is built once in the root command's PersistentPreRunE and handed
// down through the command's Context.
type cliContext struct {
	cfg    *config.Config
	logger logging.Logger
}

type ctxKey struct{}

func fromContext(ctx context.Context) *cliContext {
	return ctx.Value(ctxKey{}).(*cliContext)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "extractorctl",
		Short:         "Operate the document-to-catalog extraction pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logCfg := logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format}
			if cfg.Log.Output != "" && cfg.Log.Output != "stdout" {
				logCfg.OutputPaths = []string{cfg.Log.Output}
			}
			logger, err := logging.NewLogger(logCfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, &cliContext{cfg: cfg, logger: logger}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultExtractorctlConfigPath, "path to configuration file")

	root.AddCommand(newMigrateCommand(), newReplayCommand())
	return root
}

// buildDSN replicates postgres.buildConnString's format. That helper is
// unexported because connection.go only ever needs it to seed a pgxpool
// config; the migration functions this command calls take a raw DSN string
// instead of a pool, so the format has to be reproduced here.
func buildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back, or reset the extraction schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := fromContext(cmd.Context())
			dsn := buildDSN(cc.cfg.Database)
			if err := postgres.RunMigrations(dsn, cc.cfg.Database.MigrationPath); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			cc.logger.Info("migrations applied")
			return nil
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the N most recent migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := fromContext(cmd.Context())
			dsn := buildDSN(cc.cfg.Database)
			if err := postgres.RollbackMigration(dsn, cc.cfg.Database.MigrationPath, steps); err != nil {
				return fmt.Errorf("rollback migrations: %w", err)
			}
			cc.logger.Info("migrations rolled back", logging.Int("steps", steps))
			return nil
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-apply the entire schema (destructive)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := fromContext(cmd.Context())
			dsn := buildDSN(cc.cfg.Database)
			if err := postgres.ResetDatabase(dsn, cc.cfg.Database.MigrationPath); err != nil {
				return fmt.Errorf("reset database: %w", err)
			}
			cc.logger.Info("database reset")
			return nil
		},
	}

	cmd.AddCommand(upCmd, downCmd, resetCmd)
	return cmd
}

func newReplayCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "replay <extraction-id>",
		Short: "Resume a stuck extraction from its current stage",
		Long: "Replay looks up the extraction's durable state and re-dispatches it to " +
			"whichever stage topic handles that state, rather than restarting the " +
			"pipeline from the Parse stage.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := fromContext(cmd.Context())

			pool, err := postgres.NewConnectionPool(cc.cfg.Database, cc.logger)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer pool.Close()

			producer, err := kafkainfra.NewProducer(kafkainfra.ProducerConfig{
				Brokers:    cc.cfg.Kafka.Brokers,
				Acks:       "all",
				MaxRetries: cc.cfg.Kafka.ProducerRetries,
				BatchSize:  cc.cfg.Kafka.BatchSize,
			}, cc.logger)
			if err != nil {
				return fmt.Errorf("connect to kafka: %w", err)
			}
			defer producer.Close()

			extractionRepo := repositories.NewExtractionRepository(pool)

			// Replay never runs a handler, only republishes a dispatch message,
			// so the Driver needs no OCR adapter or matcher wired in.
			routerCfg := extraction.RouterConfig{TAuto: cc.cfg.Pipeline.TAuto, TQuick: cc.cfg.Pipeline.TQuick}
			driver := pipeline.NewDriver(extractionRepo, nil, nil, producer, routerCfg, 0, cc.logger)

			extractionID := common.ID(args[0])
			if err := driver.Resume(cmd.Context(), extractionID, common.TenantID(tenantID)); err != nil {
				return fmt.Errorf("resume extraction %s: %w", extractionID, err)
			}
			cc.logger.Info("extraction resumed", logging.String("extraction_id", string(extractionID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID the extraction belongs to")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
