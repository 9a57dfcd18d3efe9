// Package store persists gallery map of the latest harvest run.
package store

import (
	"context"
	"strings"

	"github.com/SirZenith/gimme/gallery"
)

// Store is a state store that can also be cleared and closed.
type Store interface {
	Save(ctx context.Context, m gallery.GalleryMap) error
	Load(ctx context.Context) (gallery.GalleryMap, error)
	Clear(ctx context.Context) error
	Close() error
}

// Open picks store implementation by DSN: postgres URLs go to PostgreSQL,
// `.db`/`.sqlite` files to SQLite, everything else is treated as JSON file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	lower := strings.ToLower(dsn)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return OpenPG(ctx, dsn)
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return OpenDB(dsn)
	default:
		return NewFileStore(dsn), nil
	}
}
