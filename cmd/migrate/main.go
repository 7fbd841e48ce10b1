package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands only touch migration files.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return errors.New("missing -name for create")
		}
		target := o.dir
		if target == migrate.DefaultDir {
			target = migrate.SourceDir
		}
		path, err := migrate.CreateSQLMigration(target, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	},
	"list": func(o options) error {
		files, err := migrate.Files(o.dir)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(files, "\n"))
		return nil
	},
}

var online = map[string]func(context.Context, *sql.DB, options) error{
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"status": gooseCommand("status"),
	"version": func(ctx context.Context, sqlDB *sql.DB, o options) error {
		if o.version == "" {
			return errors.New("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, o.dir, o.version)
	},
}

func gooseCommand(command string) func(context.Context, *sql.DB, options) error {
	return func(ctx context.Context, sqlDB *sql.DB, o options) error {
		return migrate.Run(ctx, sqlDB, o.dir, command)
	}
}

func main() {
	var opts options
	cmd := flag.String("cmd", "up", "one of: "+strings.Join(commandNames(), "|"))
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, `migrations directory; "embedded" uses the set compiled into the binary`)
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := run(*cmd, opts, logg); err != nil {
		logg.Error(context.Background(), "migrate."+*cmd+".failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd string, opts options, logg *logger.Logger) (err error) {
	if fn, ok := offline[cmd]; ok {
		return fn(opts)
	}
	fn, ok := online[cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd %q", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"cmd":       cmd,
		"dir":       opts.dir,
		"db_driver": cfg.DB.Driver,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, client.Close()) }()

	// goose migrations are postgres SQL; sqlite schemas come from the models
	if cfg.DB.IsSQLite() {
		if cmd != "up" {
			return fmt.Errorf("sqlite only supports -cmd=up")
		}
		if err := migrate.AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.sqlite_synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := fn(ctx, sqlDB, opts); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}

func commandNames() []string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
