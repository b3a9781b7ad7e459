package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("CUSTODIA_DATABASE_URL"), "database URL")
		sourcePath  = flag.String("source", "file://migrations", "migration source")
		down        = flag.Bool("down", false, "roll back one migration instead of migrating up")
		steps       = flag.Int("steps", 0, "number of migrations to apply (0 = all)")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "migrate: database URL is required (flag -database or CUSTODIA_DATABASE_URL)")
		os.Exit(2)
	}

	m, err := migrate.New(*sourcePath, *databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	switch {
	case *down:
		err = m.Steps(-1)
	case *steps > 0:
		err = m.Steps(*steps)
	default:
		err = m.Up()
	}

	if err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	if verr != nil && verr != migrate.ErrNilVersion {
		fmt.Fprintf(os.Stderr, "migrate: reading version: %v\n", verr)
		os.Exit(1)
	}
	fmt.Printf("migrations applied, version=%d dirty=%v\n", version, dirty)
}
