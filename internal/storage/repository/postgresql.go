// Package repository реализует хранилище данных на основе PostgreSQL
// для сайтов, заявок, пользователей, счетов, платежей и журнала лицензий.
// Транзакционные операции (закрытие счета, активация, продление) целиком
// живут внутри методов хранилища и держат блокировку нужной строки.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (storage *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'invoices'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table invoices missing or query error: %w", err)
	}
	return nil
}
