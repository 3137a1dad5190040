package backend

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS secrets (
	service      TEXT NOT NULL,
	account      TEXT NOT NULL,
	access_group TEXT NOT NULL DEFAULT '',
	accessible   INTEGER NOT NULL DEFAULT 0,
	data         BLOB NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	UNIQUE (service, account, access_group)
);`

// SQLite is a Backend over a local SQLite database. Unlike the file backend
// it does not encrypt at rest; it suits test rigs and machines where the disk
// is already encrypted and entries must be queryable by other tools.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a secrets database. An empty path
// means the default under the user data directory.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = filepath.Join(xdg.DataHome, "lockbox", "secrets.db")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening secrets db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging secrets db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating secrets table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Add(q Query) error {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM secrets WHERE service = ? AND account = ? AND access_group = ?`,
		q.Service, q.Account, q.AccessGroup,
	).Scan(&one)
	if err == nil {
		return StatusDuplicateItem
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("querying secret: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	_, err = s.db.Exec(
		`INSERT INTO secrets (service, account, access_group, accessible, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.Service, q.Account, q.AccessGroup, int(q.Accessible), notNull(q.Data), now, now,
	)
	if err != nil {
		// A writer outside this process can still win the race between the
		// existence check and the insert.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return StatusDuplicateItem
		}
		return fmt.Errorf("inserting secret: %w", err)
	}
	return nil
}

func (s *SQLite) Update(q Query) error {
	res, err := s.db.Exec(
		`UPDATE secrets SET data = ?, accessible = ?, updated_at = ?
		 WHERE service = ? AND account = ? AND access_group = ?`,
		notNull(q.Data), int(q.Accessible), time.Now().UTC().UnixMilli(),
		q.Service, q.Account, q.AccessGroup,
	)
	if err != nil {
		return fmt.Errorf("updating secret: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating secret: %w", err)
	}
	if n == 0 {
		return StatusItemNotFound
	}
	return nil
}

func (s *SQLite) Get(q Query) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM secrets WHERE service = ? AND account = ? AND access_group = ?`,
		q.Service, q.Account, q.AccessGroup,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, StatusItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying secret: %w", err)
	}
	return notNull(data), nil
}

func (s *SQLite) Remove(q Query) error {
	res, err := s.db.Exec(
		`DELETE FROM secrets WHERE service = ? AND account = ? AND access_group = ?`,
		q.Service, q.Account, q.AccessGroup,
	)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	if n == 0 {
		return StatusItemNotFound
	}
	return nil
}

func (s *SQLite) Accounts(service, accessGroup string) ([]string, error) {
	query := `SELECT DISTINCT account FROM secrets WHERE service = ?`
	args := []any{service}
	if accessGroup != "" {
		query += ` AND access_group = ?`
		args = append(args, accessGroup)
	}
	query += ` ORDER BY account`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("listing accounts: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accounts, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() error { return s.db.Close() }

// notNull keeps zero-length payloads representable in a NOT NULL blob column.
func notNull(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
