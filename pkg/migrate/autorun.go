package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/db"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

// MaybeRun applies the embedded migrations on startup when auto-migrate is enabled,
// or always for the sqlite backend outside production.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.Store.UsesSQL() {
		return nil
	}
	sqliteDev := cfg.Store.Backend == config.StoreBackendSQLite && !cfg.App.IsProd()
	if !cfg.Store.AutoMigrate && !sqliteDev {
		return nil
	}

	dialect, err := Dialect(cfg.Store.Backend)
	if err != nil {
		return err
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dialect": dialect}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := RunEmbedded(ctx, sqlDB, dialect, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
