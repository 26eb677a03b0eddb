package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open builds the store for backend ("fs" or "postgres"). The returned
// close function releases any connection pool.
func Open(ctx context.Context, backend, dir, databaseURL string, logger *slog.Logger) (Store, func(), error) {
	switch backend {
	case "", "fs":
		s, err := NewFileStore(dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		s := NewPGStore(pool, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown capture backend %q", backend)
}
