package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"go.uber.org/zap"
)

const tableName = "kv_store"

// Postgres stores every key as one row of kv_store. Both the pgx stdlib
// driver ("pgx") and lib/pq ("postgres") are registered.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(ctx context.Context, driver, uri string) (*Postgres, error) {
	if uri == "" {
		return nil, ErrConnectionFailed
	}
	if driver != "pgx" && driver != "postgres" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, uri)
	if err != nil {
		logger.Log.Error("Error opening database connection", zap.Error(err))
		return nil, ErrConnectionFailed
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Log.Error("Error connecting to database", zap.Error(err))
		db.Close()
		return nil, ErrConnectionFailed
	}

	table := pq.QuoteIdentifier(tableName)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			key VARCHAR(512) PRIMARY KEY NOT NULL,
			value JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`)
	if err != nil {
		logger.Log.Error("Error creating table", zap.Error(err))
		db.Close()
		return nil, ErrCreatingTableFailed
	}

	return &Postgres{DB: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string, dst any) (bool, error) {
	return get(ctx, p.DB, key, dst, false)
}

func (p *Postgres) Put(ctx context.Context, key string, value any) error {
	return put(ctx, p.DB, key, value)
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	return del(ctx, p.DB, key)
}

func (p *Postgres) Atomic(ctx context.Context, fn func(kv KV) error) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}

type postgresTx struct {
	tx *sql.Tx
}

// Get locks the row until the transaction ends.
func (t *postgresTx) Get(ctx context.Context, key string, dst any) (bool, error) {
	return get(ctx, t.tx, key, dst, true)
}

func (t *postgresTx) Put(ctx context.Context, key string, value any) error {
	return put(ctx, t.tx, key, value)
}

func (t *postgresTx) Delete(ctx context.Context, key string) error {
	return del(ctx, t.tx, key)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q querier, key string, dst any, forUpdate bool) (bool, error) {
	query := `SELECT value FROM ` + pq.QuoteIdentifier(tableName) + ` WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := q.QueryRowContext(ctx, query, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return decode(key, raw, true, dst)
}

func put(ctx context.Context, q querier, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO `+pq.QuoteIdentifier(tableName)+` (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at;
	`, key, string(raw))
	if err != nil {
		logger.Log.Error("Error writing key", zap.String("key", key), zap.Error(err))
		return err
	}

	return nil
}

func del(ctx context.Context, q querier, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+pq.QuoteIdentifier(tableName)+` WHERE key = $1`, key)
	return err
}
