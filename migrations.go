package peerchat

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationFiles contains the SQL schema for every supported driver, one
// directory per driver name (mysql, postgres, sqlite3). Table names use the
// {{prefix}} placeholder.
//
// Users who prefer their own migration tool can read the files directly:
//
//	source, err := iofs.New(peerchat.MigrationFiles, "migrations/mysql")
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS

// DefaultTablePrefix is the table prefix used when none is configured.
const DefaultTablePrefix = "peerchat_"

// ApplyMigrations applies every embedded migration for driverName that has not
// been applied yet. Applied versions are tracked in <prefix>schema_migrations,
// so calling it on every start-up is safe.
func ApplyMigrations(ctx context.Context, db *sql.DB, driverName, prefix string) error {
	if prefix == "" {
		prefix = DefaultTablePrefix
	}

	dir := path.Join("migrations", driverName)
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return NewErrorWithCause(ErrCodeConfiguration, fmt.Sprintf("no migrations for driver %q", driverName), err)
	}

	versions := prefix + "schema_migrations"
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (version VARCHAR(255) NOT NULL PRIMARY KEY, applied_at TIMESTAMP NOT NULL)",
		versions,
	)); err != nil {
		return NewErrorWithCause(ErrCodeStorage, "failed to create migrations table", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ph1, ph2 := "?", "?"
	if driverName == "postgres" {
		ph1, ph2 = "$1", "$2"
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")

		var count int
		row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE version = %s", versions, ph1), version)
		if err := row.Scan(&count); err != nil {
			return NewErrorWithCause(ErrCodeStorage, "failed to read migration state", err)
		}
		if count > 0 {
			continue
		}

		body, err := MigrationFiles.ReadFile(path.Join(dir, name))
		if err != nil {
			return NewErrorWithCause(ErrCodeConfiguration, "failed to read migration "+name, err)
		}

		for _, stmt := range splitStatements(strings.ReplaceAll(string(body), "{{prefix}}", prefix)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return NewErrorWithCause(ErrCodeStorage, "migration "+version+" failed", err)
			}
		}

		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (version, applied_at) VALUES (%s, %s)", versions, ph1, ph2),
			version, time.Now().UTC(),
		); err != nil {
			return NewErrorWithCause(ErrCodeStorage, "failed to record migration "+version, err)
		}
	}

	return nil
}

// splitStatements splits a migration file on semicolons, dropping empty statements.
func splitStatements(body string) []string {
	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
