package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaConfig содержит настройки файла сохранения в MariaDB/MySQL
type MariaConfig struct {
	DSN     string        // user:pass@tcp(host:port)/dbname
	Table   string        // имя таблицы, по умолчанию world_data
	Timeout time.Duration // таймаут одной операции
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Maria хранит данные мира в таблице MariaDB/MySQL.
// Каждая запись занимает одну строку с составным ключом (kind, id).
type Maria struct {
	db      *sql.DB
	table   string
	timeout time.Duration
}

// NewMaria подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	config - строка подключения и имя таблицы
//
// Возвращает:
//
//	*Maria - открытое хранилище
//	error - ошибка подключения или создания таблицы
func NewMaria(config MariaConfig) (*Maria, error) {
	if config.Table == "" {
		config.Table = "world_data"
	}
	if !tableNameRe.MatchString(config.Table) {
		return nil, fmt.Errorf("недопустимое имя таблицы %q", config.Table)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	db, err := sql.Open("mysql", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	m := &Maria{db: db, table: config.Table, timeout: config.Timeout}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}
	if _, err := db.ExecContext(ctx, m.createTableQuery()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы %s: %w", m.table, err)
	}
	return m, nil
}

func (m *Maria) createTableQuery() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			kind       VARCHAR(32)  NOT NULL,
			id         VARCHAR(191) NOT NULL,
			data       LONGBLOB     NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			PRIMARY KEY (kind, id)
		) ENGINE=InnoDB`, m.table)
}

func (m *Maria) selectQuery() string {
	return fmt.Sprintf(`SELECT data FROM %s WHERE kind = ? AND id = ?`, m.table)
}

func (m *Maria) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (kind, id, data)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			updated_at = CURRENT_TIMESTAMP`, m.table)
}

// Read читает значение по ключу
func (m *Maria) Read(key Key) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var data []byte
	err := m.db.QueryRowContext(ctx, m.selectQuery(), key.Kind, key.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	return data, true, nil
}

// Write сохраняет значение, заменяя прежнее
func (m *Maria) Write(key Key, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if _, err := m.db.ExecContext(ctx, m.upsertQuery(), key.Kind, key.ID, data); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (m *Maria) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
