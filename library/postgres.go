package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV is the Postgres KV backend. It uses the same single-table shape
// as the SQLite backend.
type PostgresKV struct {
	pool *pgxpool.Pool
}

// NewPostgresKV connects to connString and creates the kv table if needed.
func NewPostgresKV(ctx context.Context, connString string) (*PostgresKV, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value BYTEA NOT NULL,
        version BIGINT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &PostgresKV{pool: pool}, nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := p.pool.QueryRow(ctx, `SELECT value, version FROM kv WHERE key=$1`, key).Scan(&e.Value, &e.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	return e, true, nil
}

func (p *PostgresKV) Apply(ctx context.Context, writes ...Write) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, w := range writes {
		var version int64
		// FOR UPDATE holds the row until commit; absent keys are guarded by
		// the primary key on insert.
		err := tx.QueryRow(ctx, `SELECT version FROM kv WHERE key=$1 FOR UPDATE`, w.Key).Scan(&version)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("apply %s: %w", w.Key, err)
		}
		if w.IfVersion != AnyVersion && version != w.IfVersion {
			return ErrVersionMismatch
		}

		if w.Delete {
			if _, err := tx.Exec(ctx, `DELETE FROM kv WHERE key=$1`, w.Key); err != nil {
				return fmt.Errorf("apply %s: %w", w.Key, err)
			}
			continue
		}
		tag, err := tx.Exec(ctx, `INSERT INTO kv(key,value,version,updated_at) VALUES($1,$2,$3,now())
            ON CONFLICT(key) DO UPDATE SET value=excluded.value, version=excluded.version, updated_at=now()
            WHERE kv.version=$4`, w.Key, w.Value, version+1, version)
		if err != nil {
			return fmt.Errorf("apply %s: %w", w.Key, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionMismatch
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresKV) Close() error {
	p.pool.Close()
	return nil
}
