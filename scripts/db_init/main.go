package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dbfs "github.com/garnizeh/dosecert/db"
	"github.com/garnizeh/dosecert/internal/config"
	"github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// run migrations and seed using internal/db.Migrate
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	repo := sqlite.New(database, nil)
	schemas, err := repo.ListSchemas(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Schema check error: %v\n", err)
		os.Exit(1)
	}
	templates, err := repo.ListTemplates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Template check error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database %s initialized: %d schemas, %d templates.\n", cfg.DatabasePath, len(schemas), len(templates))
}
