package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nevindra/catalyst"
	"github.com/nevindra/catalyst/internal/config"
	"github.com/nevindra/catalyst/store/jsonfile"
	"github.com/nevindra/catalyst/store/postgres"
	"github.com/nevindra/catalyst/store/sqlite"
	"github.com/nevindra/catalyst/tools/calculator"
	"github.com/nevindra/catalyst/tools/code"
	"github.com/nevindra/catalyst/tools/file"
	"github.com/nevindra/catalyst/tools/web"
)

// defaultTools is the everyday toolset: arithmetic, workspace files,
// web access, and Python execution rooted at the blob storage path.
func defaultTools(blobPath string) []catalyst.Tool {
	return []catalyst.Tool{
		calculator.New(),
		file.NewReader(blobPath),
		file.NewWriter(blobPath),
		web.NewFetch(),
		web.NewDownload(blobPath),
		code.NewExecutor("python3", code.WithWorkspace(blobPath)),
		code.NewInstaller("python3"),
	}
}

// openStore creates the configured long-term store and returns it with
// a close function.
func openStore(ctx context.Context, cfg config.MemoryConfig) (catalyst.LongTermStore, func(), error) {
	switch cfg.Store {
	case "", "jsonfile":
		s := jsonfile.New(cfg.Path)
		return s, func() { _ = s.Close() }, nil
	case "sqlite":
		s := sqlite.New(cfg.Path)
		if err := s.Init(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close(); pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory store %q", cfg.Store)
	}
}
