package store

import (
	"context"
	"fmt"

	mydb "github.com/TimurManjosov/triagem/internal/db"
)

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "postgres", "sqlite". For postgres dsn is the
// connection string; for sqlite it is the database file path.
func NewStore(ctx context.Context, storeType, dsn string) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s := NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
