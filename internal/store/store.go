// Package store persists authored form configurations and their publish state
// in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrNotFound    = errors.New("form not found")
	ErrEmptyConfig = errors.New("form config is empty")
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// Form is a stored form configuration. Config holds the authored JSON exactly
// as saved; it is normalized only when rendered.
type Form struct {
	ID            string
	Name          string
	Config        []byte
	Version       int
	PublishedHash string
	PublicURL     string
	ProxyURL      string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Published reports whether the form has been deployed at least once.
func (f *Form) Published() bool {
	return f.PublishedAt != nil
}

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			published_hash TEXT NOT NULL DEFAULT '',
			public_url TEXT NOT NULL DEFAULT '',
			proxy_url TEXT NOT NULL DEFAULT '',
			published_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forms_updated ON forms(updated_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

const formColumns = `id, name, config, version, published_hash, public_url, proxy_url, published_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(row scanner) (*Form, error) {
	var (
		f           Form
		config      string
		publishedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.Name, &config, &f.Version, &f.PublishedHash, &f.PublicURL, &f.ProxyURL,
		&publishedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Config = []byte(config)
	if publishedAt.Valid {
		t := publishedAt.Time
		f.PublishedAt = &t
	}
	return &f, nil
}

// CreateForm stores a new form under a generated id.
func (db *DB) CreateForm(ctx context.Context, name string, config []byte) (*Form, error) {
	return db.SaveForm(ctx, uuid.NewString(), name, config)
}

// SaveForm inserts or replaces the configuration of form id. Every save bumps
// the version; publish state is kept.
func (db *DB) SaveForm(ctx context.Context, id, name string, config []byte) (*Form, error) {
	if len(config) == 0 {
		return nil, ErrEmptyConfig
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO forms (id, name, config, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config = excluded.config,
			version = forms.version + 1,
			updated_at = excluded.updated_at`,
		id, name, string(config), now, now)
	if err != nil {
		return nil, fmt.Errorf("save form %s: %w", id, err)
	}

	db.logger.Debug().Str("form_id", id).Msg("Form saved")
	return db.GetForm(ctx, id)
}

// GetForm loads form id or returns ErrNotFound.
func (db *DB) GetForm(ctx context.Context, id string) (*Form, error) {
	row := db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = ?`, id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get form %s: %w", id, err)
	}
	return f, nil
}

// ListForms returns every stored form, most recently updated first.
func (db *DB) ListForms(ctx context.Context) ([]*Form, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// DeleteForm removes form id.
func (db *DB) DeleteForm(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete form %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPublished records the artifact hash and URLs of the latest deploy.
func (db *DB) MarkPublished(ctx context.Context, id, hash, publicURL, proxyURL string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE forms SET published_hash = ?, public_url = ?, proxy_url = ?, published_at = ?
		WHERE id = ?`,
		hash, publicURL, proxyURL, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark form %s published: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
