package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ticketing/internal/config"
	"ticketing/internal/logger"
	"ticketing/internal/models"
)

// Connect opens the PostgreSQL pool and wraps it in a bun.DB.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("connected to %s:%s/%s", cfg.Host, cfg.Port, cfg.Database))

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// CreateSchema creates every table the core uses. Production deployments
// run versioned migrations instead; this path serves development and the
// in-memory SQLite test stores.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.EventSession)(nil),
		(*models.EventAgent)(nil),
		(*models.TicketType)(nil),
		(*models.PromoCode)(nil),
		(*models.Ticket)(nil),
		(*models.TicketSession)(nil),
		(*models.TicketScan)(nil),
		(*models.Notification)(nil),
	}
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", table, err)
		}
	}
	return nil
}

// SupportsForUpdate reports whether the dialect honours SELECT ... FOR
// UPDATE. SQLite does not, but it serializes writing transactions itself,
// so skipping the clause there keeps the same guarantee in tests.
func SupportsForUpdate(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}

// IsUniqueViolation recognizes unique-constraint errors from both the
// postgres driver and the SQLite driver used in tests.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
