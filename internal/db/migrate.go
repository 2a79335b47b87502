package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/geocoder89/contenthub/internal/db/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded goose migrations. goose works against
// database/sql, so a short-lived stdlib connection is opened next to the
// pgx pool.
func RunMigrations(ctx context.Context, dbURL string) error {
	sqldb, err := sql.Open("pgx", dbURL)

	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	defer sqldb.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqldb, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
