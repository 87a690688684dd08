package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cx-go/internal/cx"
	"cx-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase records export runs in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Concurrent exports from `cx serve` write history rows.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteDatabase) StartExportRun(projectID, rootFolder string, startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO export_runs (project_id, root_folder, started_at, status) VALUES (?, ?, ?, ?)`,
		projectID, rootFolder, startedAt.UTC(), cx.RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("creating export run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading export run id: %w", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishExportRun(id int64, finishedAt time.Time, status string, filesCount int, outputPath string, runErr string) error {
	res, err := s.db.Exec(
		`UPDATE export_runs SET finished_at = ?, status = ?, files_count = ?, output_path = ?, error = ? WHERE id = ?`,
		finishedAt.UTC(), status, filesCount, outputPath, runErr, id,
	)
	if err != nil {
		return fmt.Errorf("finishing export run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing export run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: export run %d", cx.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteDatabase) ListExportRuns(limit int) ([]*cx.ExportRun, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, root_folder, started_at, finished_at, status, files_count, output_path, error
		FROM export_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing export runs: %w", err)
	}
	defer rows.Close()

	var runs []*cx.ExportRun
	for rows.Next() {
		var (
			run        cx.ExportRun
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.RootFolder, &run.StartedAt, &finishedAt,
			&run.Status, &run.FilesCount, &run.OutputPath, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning export run: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing export runs: %w", err)
	}
	return runs, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ cx.History = (*SQLiteDatabase)(nil)
