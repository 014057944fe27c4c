package docstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/DocMesh/docmesh-mvp/engine/docstore/migrations"
	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// SQLite is the Store implementation backed by a local SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database under dataDir and applies
// pending migrations.
func NewSQLite(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "documents.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// migrate applies all pending .up.sql migrations in version order.
func (s *SQLite) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Create inserts a document record and fills in its assigned ID.
func (s *SQLite) Create(ctx context.Context, doc *domain.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (filename, filepath, content, chunk_count, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.Filename, doc.Filepath, doc.Content, doc.ChunkCount, doc.UploadedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateDocument
		}
		return fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	doc.ID = id
	return nil
}

// GetByID retrieves a document record by its ID.
func (s *SQLite) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, filepath, content, chunk_count, uploaded_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// GetByFilename retrieves a document record by its unique filename.
func (s *SQLite) GetByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, filepath, content, chunk_count, uploaded_at
		FROM documents WHERE filename = ?
	`, filename)
	return scanDocument(row)
}

// List returns all document records in upload order.
func (s *SQLite) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, filepath, content, chunk_count, uploaded_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var uploadedAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Filepath, &doc.Content, &doc.ChunkCount, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if uploadedAt.Valid {
			doc.UploadedAt = uploadedAt.Time
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SetChunkCount records how many chunks were indexed for a document.
func (s *SQLite) SetChunkCount(ctx context.Context, id int64, count int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET chunk_count = ? WHERE id = ?", count, id)
	if err != nil {
		return fmt.Errorf("updating chunk count: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a document record.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var uploadedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Filepath, &doc.Content, &doc.ChunkCount, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if uploadedAt.Valid {
		doc.UploadedAt = uploadedAt.Time
	}
	return &doc, nil
}
