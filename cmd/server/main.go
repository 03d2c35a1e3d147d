package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/studyhub/internal/bootstrap"
	"anoa.com/studyhub/internal/config"
	"anoa.com/studyhub/internal/server"
	"anoa.com/studyhub/pkg/database"
	"anoa.com/studyhub/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "studyhub",
	Short: "Real-time messaging and notification service for study groups",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, log, err := setup()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("migration completed")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, groups and friendships",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, log, err := setup()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		if err := bootstrap.SeedDemoData(db, log); err != nil {
			return err
		}
		log.Info().Msg("demo data seeded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.Get()
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setup() (*config.Config, *gorm.DB, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Pretty: !cfg.IsProduction(),
	})
	if cfg.ConfigFile != "" {
		log.Info().Str("file", cfg.ConfigFile).Msg("using config file")
	}

	db, err := database.Connect(cfg, logger.Component("gorm"))
	if err != nil {
		return nil, nil, log, err
	}
	return cfg, db, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, log, err := setup()
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("env", cfg.AppEnv).Msg("starting studyhub")
	return srv.Run(ctx)
}
