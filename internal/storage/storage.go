package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no row has the requested id.
var ErrNotFound = errors.New("task not found")

// ErrLocked is returned by Open when another process owns the database.
var ErrLocked = errors.New("database is in use by another process")

type Store struct {
	db   *sql.DB
	lock *flock.Flock

	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dbPath, err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		lock: lock,
		subs: make(map[chan Change]struct{}),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	is_important INTEGER NOT NULL DEFAULT 0,
	is_completed INTEGER NOT NULL DEFAULT 0,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	deleted_at INTEGER DEFAULT NULL,
	created_at INTEGER NOT NULL,
	completed_at INTEGER DEFAULT NULL,
	order_index INTEGER NOT NULL DEFAULT 0
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns upgrades databases created by older versions. The first
// schema had no completed_at; rows migrated from it keep a NULL there.
func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"is_important": "ALTER TABLE tasks ADD COLUMN is_important INTEGER NOT NULL DEFAULT 0;",
		"is_deleted":   "ALTER TABLE tasks ADD COLUMN is_deleted INTEGER NOT NULL DEFAULT 0;",
		"deleted_at":   "ALTER TABLE tasks ADD COLUMN deleted_at INTEGER DEFAULT NULL;",
		"completed_at": "ALTER TABLE tasks ADD COLUMN completed_at INTEGER DEFAULT NULL;",
		"order_index":  "ALTER TABLE tasks ADD COLUMN order_index INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
