package shared

import (
	"cmp"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// migrationName matches NNNN_description_up.sql and NNNN_description_down.sql.
var migrationName = regexp.MustCompile(`^(\d+)_(.+)_(up|down)\.sql$`)

// sqlComment matches a "--" comment up to the end of the line.
var sqlComment = regexp.MustCompile(`--[^\n]*`)

// Migration is one versioned change to the ledger schema.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// loadMigrations returns the embedded migrations in ascending version order.
func loadMigrations() ([]Migration, error) {
	files, err := fs.Glob(migrationFiles, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migration files: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, file := range files {
		parts := migrationName.FindStringSubmatch(strings.TrimPrefix(file, "sql/"))
		if parts == nil {
			continue
		}
		version, _ := strconv.Atoi(parts[1])

		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if parts[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %04d_%s needs both up and down files", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	pending, err := PendingMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := migrate(db, m.Version, m.Up, true); err != nil {
			return fmt.Errorf("failed to apply migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// PendingMigrations returns the migrations not yet recorded in schema_migrations, in version order.
func PendingMigrations(db *sql.DB) ([]Migration, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}

	pending := []Migration{}
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if !applied[m.Version] {
			continue
		}
		if err := migrate(db, m.Version, m.Down, false); err != nil {
			return fmt.Errorf("failed to roll back migration %04d_%s: %w", m.Version, m.Name, err)
		}
		return nil
	}
	return fmt.Errorf("no migrations to roll back")
}

// appliedVersions creates schema_migrations when missing and returns the versions it records.
func appliedVersions(db *sql.DB) (map[int]bool, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to read applied migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// migrate runs script and records (up) or forgets (down) version in the same transaction.
func migrate(db *sql.DB, version int, script string, up bool) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(sqlComment.ReplaceAllString(script, ""), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}

	bookkeeping := "DELETE FROM schema_migrations WHERE version = ?"
	if up {
		bookkeeping = "INSERT INTO schema_migrations (version) VALUES (?)"
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		return err
	}
	return tx.Commit()
}
