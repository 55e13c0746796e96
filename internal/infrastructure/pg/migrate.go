package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"bcchrates-service/internal/infrastructure/logx"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var fs embed.FS

// RunMigrations applies every pending schema migration.
func RunMigrations(ctx context.Context, db *DB) error {
	src, err := iofs.New(fs, "migrations")
	if err != nil {
		return fmt.Errorf("migrate src: %w", err)
	}
	sqldb, err := sql.Open("pgx", db.Pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqldb.Close()

	// a fresh container may refuse connections for a few seconds
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(func() error { return sqldb.PingContext(ctx) }, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	driver, err := pgdriver.WithInstance(sqldb, &pgdriver.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	if v, dirty, err := m.Version(); err == nil {
		logx.L().Info("db.migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
	}
	return nil
}
