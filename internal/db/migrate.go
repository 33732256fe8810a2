package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// seedSchema is a JSON schema shipped with the binary.
type seedSchema struct {
	version     string
	file        string
	description string
}

// seedTemplate is a prompt template shipped with the binary.
type seedTemplate struct {
	name          string
	version       string
	file          string
	schemaVersion string
	metadata      string
}

var seedSchemas = []seedSchema{
	{version: "project-file/v1", file: "project_file_v1.json", description: "persisted project file"},
	{version: "narrative/v1", file: "narrative_v1.json", description: "narrative generation response"},
}

var seedTemplates = []seedTemplate{
	{
		name:          "narrative",
		version:       "v1",
		file:          "template_narrative_v1.txt",
		schemaVersion: "narrative/v1",
		metadata:      `{"owner":"system","description":"default narrative template"}`,
	},
}

// Migrate applies migrations and optional seed files found in the repository.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files in `migrations/` that have not yet been recorded. Seeds are
// upserted on every run so shipped schemas and templates follow the binary.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		// use filename (without extension) as migration version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	ts := time.Now().UTC().UnixMilli()
	for _, s := range seedSchemas {
		b, err := fs.ReadFile(seedFS, path.Join("seed", s.file))
		if err != nil {
			// seeds are optional
			continue
		}
		if _, err := d.Exec(ctx, `INSERT INTO json_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(version) DO UPDATE SET description=excluded.description, schema_json=excluded.schema_json, updated=excluded.updated`, s.version, s.description, string(b), ts, ts); err != nil {
			return fmt.Errorf("seed schema %s: %w", s.version, err)
		}
	}

	for _, t := range seedTemplates {
		b, err := fs.ReadFile(seedFS, path.Join("seed", t.file))
		if err != nil {
			continue
		}
		if _, err := d.Exec(ctx, `INSERT INTO prompt_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, schema_version=excluded.schema_version, metadata=excluded.metadata, updated=excluded.updated`, t.name, t.version, string(b), t.schemaVersion, t.metadata, ts, ts); err != nil {
			return fmt.Errorf("seed template %s:%s: %w", t.name, t.version, err)
		}
	}

	return nil
}
