package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	migratelib "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-clubs/internal/config"
	"ms-clubs/internal/database/migrations"
)

func main() {
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: *dir})
	defer runner.Close()

	switch command {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		target := flag.Arg(1)
		version, parseErr := strconv.ParseUint(target, 10, 32)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "invalid target version %q\n", target)
			os.Exit(1)
		}
		err = runner.MigrateTo(uint(version))
	case "version":
		version, dirty, verr := runner.Version()
		if verr != nil && !errors.Is(verr, migratelib.ErrNilVersion) {
			err = verr
			break
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down, to or version)\n", command)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
}
