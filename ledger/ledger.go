// Package ledger records which manifests were already downloaded so repeated
// crawls skip them. It is a SQLite database with one row per repository and
// one row per manifest revision.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("ledger record not found")

// DefaultFile is the ledger file name inside the work directory.
const DefaultFile = "crawl.sqlite"

var schema = []string{`
CREATE TABLE IF NOT EXISTS repos (
	id INTEGER PRIMARY KEY,
	hoster TEXT NOT NULL,
	url TEXT NOT NULL,
	full_name TEXT NOT NULL,
	UNIQUE (hoster, full_name)
)`, `
CREATE TABLE IF NOT EXISTS manifests (
	id INTEGER PRIMARY KEY,
	repo_id INTEGER NOT NULL REFERENCES repos (id),
	original_name TEXT NOT NULL,
	sha TEXT NOT NULL,
	download_url TEXT NOT NULL,
	download_success BOOLEAN NOT NULL,
	filepath TEXT NOT NULL,
	fileformat TEXT NOT NULL,
	UNIQUE (repo_id, sha)
)`,
}

// Repo is a hosted repository.
type Repo struct {
	ID       int64
	Hoster   string
	URL      string
	FullName string
}

// Manifest is one downloaded manifest revision.
type Manifest struct {
	ID              int64
	RepoID          int64
	OriginalName    string
	SHA             string
	DownloadURL     string
	DownloadSuccess bool
	FilePath        string
	FileFormat      string
}

// Ledger is the dedup database. It is safe for concurrent use.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// CreateRepo returns the stored repository with r's hoster and full name,
// inserting r first when there is none.
func (l *Ledger) CreateRepo(ctx context.Context, r Repo) (Repo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO repos (hoster, url, full_name) VALUES (?, ?, ?)
		 ON CONFLICT (hoster, full_name) DO NOTHING`,
		r.Hoster, r.URL, r.FullName)
	if err != nil {
		return Repo{}, fmt.Errorf("insert repo %s: %w", r.FullName, err)
	}

	var out Repo
	err = l.db.QueryRowContext(ctx,
		`SELECT id, hoster, url, full_name FROM repos WHERE hoster = ? AND full_name = ?`,
		r.Hoster, r.FullName).Scan(&out.ID, &out.Hoster, &out.URL, &out.FullName)
	if err != nil {
		return Repo{}, fmt.Errorf("select repo %s: %w", r.FullName, err)
	}
	return out, nil
}

// GetManifest returns the manifest of repoID at sha, or ErrNotFound.
func (l *Ledger) GetManifest(ctx context.Context, repoID int64, sha string) (Manifest, error) {
	var m Manifest
	err := l.db.QueryRowContext(ctx,
		`SELECT id, repo_id, original_name, sha, download_url, download_success, filepath, fileformat
		 FROM manifests WHERE repo_id = ? AND sha = ?`,
		repoID, sha).Scan(&m.ID, &m.RepoID, &m.OriginalName, &m.SHA, &m.DownloadURL,
		&m.DownloadSuccess, &m.FilePath, &m.FileFormat)
	if errors.Is(err, sql.ErrNoRows) {
		return Manifest{}, ErrNotFound
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("select manifest %d@%s: %w", repoID, sha, err)
	}
	return m, nil
}

// InsertManifest records a manifest and returns its id.
func (l *Ledger) InsertManifest(ctx context.Context, m Manifest) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO manifests (repo_id, original_name, sha, download_url, download_success, filepath, fileformat)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.RepoID, m.OriginalName, m.SHA, m.DownloadURL, m.DownloadSuccess, m.FilePath, m.FileFormat)
	if err != nil {
		return 0, fmt.Errorf("insert manifest %s@%s: %w", m.OriginalName, m.SHA, err)
	}
	return res.LastInsertId()
}
