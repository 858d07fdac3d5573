// Package migrations запускает миграции схемы через golang-migrate
// поверх уже открытого соединения с базой.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// источник миграций
)

// Run применяет все миграции из каталога migrationsPath.
// Отсутствие новых миграций ошибкой не считается.
func Run(db *sql.DB, migrationsPath string) error {
	const op = "migrations.Run"

	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "pgx", driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
