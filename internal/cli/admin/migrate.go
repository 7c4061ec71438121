package admin

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const migrationsSource = "file://migrations"

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the database schema",
		Long:  "Apply (up), roll back one step (down) or print the version of the database schema",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMigrate,
	}

	cmd.Flags().String("source", migrationsSource, "Migration source URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	source, _ := cmd.Flags().GetString("source")
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	switch action {
	case "up":
		return runMigrations(cfg.DatabaseURL, source, logger)
	case "down", "version":
		m, closeDB, err := newMigrate(cfg.DatabaseURL, source)
		if err != nil {
			return err
		}
		defer closeDB()
		if action == "down" {
			if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("failed to roll back migration: %w", err)
			}
		}
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func newMigrate(databaseURL, source string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, func() { _ = db.Close() }, nil
}

func runMigrations(databaseURL, source string, logger *zap.Logger) error {
	m, closeDB, err := newMigrate(databaseURL, source)
	if err != nil {
		return err
	}
	defer closeDB()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	upToDate := errors.Is(err, migrate.ErrNoChange)

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("up_to_date", upToDate))
	return nil
}
