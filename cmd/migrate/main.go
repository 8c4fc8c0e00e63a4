// Command migrate applies the party store schema with goose.
//
//	migrate -cmd up|down|redo|reset|status|version|create|validate [-dir path] [-name n] [-version v]
//
// Without -dir the migrations compiled into the binary are used; create always needs -dir.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/db"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	"github.com/angelmondragon/forkcast-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|redo|reset|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory on disk (default: embedded migrations)")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := runOffline(opts); !errors.Is(err, errNeedsDB) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"cmd":     opts.cmd,
		"backend": cfg.Store.Backend,
	})

	dialect, err := migrate.Dialect(cfg.Store.Backend)
	if err != nil {
		logg.Error(ctx, "store backend has no sql schema", err)
		os.Exit(1)
	}
	client, err := db.New(ctx, cfg.Store.Backend, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect database", err)
		os.Exit(1)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to get sql handle", err)
		os.Exit(1)
	}

	if err := runWithDB(ctx, sqlDB, dialect, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

var errNeedsDB = errors.New("command needs a database")

// runOffline handles the commands that only touch files.
func runOffline(opts options) error {
	switch opts.cmd {
	case "create":
		if opts.dir == "" || opts.name == "" {
			return errors.New("create needs -dir and -name")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		var err error
		if opts.dir == "" {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(opts.dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}
	return errNeedsDB
}

func runWithDB(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
	switch opts.cmd {
	case "up", "down", "redo", "reset", "status":
		if opts.dir == "" {
			return migrate.RunEmbedded(ctx, sqlDB, dialect, opts.cmd)
		}
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("version needs -version")
		}
		if opts.dir == "" {
			return migrate.MigrateEmbeddedToVersion(ctx, sqlDB, dialect, opts.version)
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
	}
	return fmt.Errorf("unknown command %q", opts.cmd)
}
