package server

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/wichananm65/paint-sync/internal/config"
	"github.com/wichananm65/paint-sync/internal/paint"
)

// OpenRepository builds the product store chosen by cfg.StoreDriver. The
// returned close func releases any connection pool.
func OpenRepository(ctx context.Context, cfg config.Config) (paint.Repository, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		repo := paint.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("using postgres product store")
		return repo, db.Close, nil
	case config.StoreDriverFile, "":
		repo := paint.NewFileRepository(cfg.ProductsFile)
		log.WithField("path", repo.Path()).Info("using file product store")
		return repo, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
