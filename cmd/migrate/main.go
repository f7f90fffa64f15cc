// Command edushop-migrate manages the relational schema.
//
//	edushop-migrate up|down|version
//	edushop-migrate force <version>
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/EduShopX/edushop/internal/cli"
	"github.com/EduShopX/edushop/internal/config"
	"github.com/EduShopX/edushop/internal/platform/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		cli.NewPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: edushop-migrate up|down|version|force <version>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := migrations.NewMigrator(db)
	if err != nil {
		return err
	}
	out := cli.Stdout()

	switch args[0] {
	case "up":
		spin := out.Spinner("Applying migrations")
		spin.Start()
		if err := migrations.IgnoreNoChange(m.Up()); err != nil {
			spin.Error("migration failed")
			return err
		}
		spin.Success("schema is up to date")
	case "down":
		spin := out.Spinner("Reverting last migration")
		spin.Start()
		if err := migrations.IgnoreNoChange(m.Steps(-1)); err != nil {
			spin.Error("revert failed")
			return err
		}
		spin.Success("reverted one migration")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			out.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("version %d", version)
		if dirty {
			out.Warning(msg + " (dirty)")
			return nil
		}
		out.Info(msg)
	case "force":
		if len(args) != 2 {
			return errors.New("usage: edushop-migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(version); err != nil {
			return err
		}
		out.Success(fmt.Sprintf("forced version %d", version))
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
