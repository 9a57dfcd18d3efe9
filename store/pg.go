package store

import (
	"context"
	"fmt"

	"github.com/SirZenith/gimme/gallery"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgMaxConns = 2

const pgSchema = `CREATE TABLE IF NOT EXISTS harvest_entries (
	thumb_uri  TEXT PRIMARY KEY,
	target_uri TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps gallery map in PostgreSQL table `harvest_entries`.
type PGStore struct {
	pool *pgxpool.Pool
}

func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %s", err)
	}
	cfg.MaxConns = pgMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %s", err)
	}

	if _, err = pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create state table: %s", err)
	}

	return &PGStore{pool: pool}, nil
}

// Save replaces all stored entries with given map in one transaction.
func (s *PGStore) Save(ctx context.Context, m gallery.GalleryMap) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `DELETE FROM harvest_entries`); err != nil {
		return fmt.Errorf("failed to clear previous state: %w", err)
	}

	keys := m.Keys()
	for i := 0; i < len(keys); i += dbBatchSize {
		j := min(i+dbBatchSize, len(keys))

		b := &pgx.Batch{}
		for _, thumb := range keys[i:j] {
			b.Queue(
				`INSERT INTO harvest_entries (thumb_uri, target_uri) VALUES ($1, $2)
				ON CONFLICT (thumb_uri) DO UPDATE SET target_uri = EXCLUDED.target_uri, updated_at = now()`,
				thumb, m[thumb],
			)
		}

		if err = tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}

	return nil
}

func (s *PGStore) Load(ctx context.Context) (gallery.GalleryMap, error) {
	rows, err := s.pool.Query(ctx, `SELECT thumb_uri, target_uri FROM harvest_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	defer rows.Close()

	m := gallery.GalleryMap{}
	for rows.Next() {
		var thumb, target string
		if err = rows.Scan(&thumb, &target); err != nil {
			return nil, fmt.Errorf("failed to read state row: %w", err)
		}
		m[thumb] = target
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	return m, nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM harvest_entries`)
	return err
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
