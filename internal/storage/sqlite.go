// Package storage keeps user rows in a local SQLite database. It implements
// the same row gateway as the spreadsheet backend so the services cannot
// tell them apart.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mmms/internal/core"
	"mmms/internal/sheets"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

var (
	_ sheets.Provider = (*SQLiteStore)(nil)
	_ sheets.Gateway  = (*sqliteGateway)(nil)
)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Gateway returns the rows owned by user.
func (s *SQLiteStore) Gateway(_ context.Context, user core.User) (sheets.Gateway, error) {
	if user.Email == "" {
		return nil, &core.AuthError{Reason: "user without email"}
	}
	return &sqliteGateway{db: s.db, owner: user.Email}, nil
}

type sqliteGateway struct {
	db    *sql.DB
	owner string
}

func (g *sqliteGateway) EnsureContainer(ctx context.Context, kind sheets.Kind) (string, error) {
	if _, err := sheets.LayoutOf(kind); err != nil {
		return "", core.Persistence("ensure", string(kind), err)
	}
	if err := g.ensure(ctx, g.db, kind); err != nil {
		return "", core.Persistence("ensure", string(kind), err)
	}
	return fmt.Sprintf("sqlite:%s:%s", g.owner, kind), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (g *sqliteGateway) ensure(ctx context.Context, db execer, kind sheets.Kind) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO containers (owner, kind) VALUES (?, ?)`, g.owner, string(kind))
	if err != nil {
		return fmt.Errorf("insert container: %w", err)
	}
	return nil
}

func (g *sqliteGateway) List(ctx context.Context, kind sheets.Kind) ([]sheets.Row, error) {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return nil, core.Persistence("list", string(kind), err)
	}
	rs, err := g.db.QueryContext(ctx,
		`SELECT cells FROM rows WHERE owner = ? AND kind = ? ORDER BY id`, g.owner, string(kind))
	if err != nil {
		return nil, core.Persistence("list", string(kind), fmt.Errorf("query rows: %w", err))
	}
	defer rs.Close()

	var out []sheets.Row
	for rs.Next() {
		var raw string
		if err := rs.Scan(&raw); err != nil {
			return nil, core.Persistence("list", string(kind), fmt.Errorf("scan row: %w", err))
		}
		row, err := decodeCells(raw)
		if err != nil {
			return nil, core.Persistence("list", string(kind), err)
		}
		out = append(out, layout.Pad(row))
	}
	if err := rs.Err(); err != nil {
		return nil, core.Persistence("list", string(kind), fmt.Errorf("iterate rows: %w", err))
	}
	return out, nil
}

func (g *sqliteGateway) Append(ctx context.Context, kind sheets.Kind, row sheets.Row) error {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return core.Persistence("append", string(kind), err)
	}
	raw, err := json.Marshal(layout.Pad(row))
	if err != nil {
		return core.Persistence("append", string(kind), fmt.Errorf("encode row: %w", err))
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("append", string(kind), fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if err := g.ensure(ctx, tx, kind); err != nil {
		return core.Persistence("append", string(kind), err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rows (owner, kind, cells) VALUES (?, ?, ?)`, g.owner, string(kind), string(raw)); err != nil {
		return core.Persistence("append", string(kind), fmt.Errorf("insert row: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return core.Persistence("append", string(kind), fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (g *sqliteGateway) UpdateCell(ctx context.Context, kind sheets.Kind, rowIndex, column int, values ...string) error {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return core.Persistence("update", string(kind), err)
	}
	if column < 1 || column+len(values)-1 > layout.Width() {
		return core.Persistence("update", string(kind), fmt.Errorf("columns %d..%d outside layout", column, column+len(values)-1))
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("update", string(kind), fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	id, raw, err := g.rowAt(ctx, tx, kind, rowIndex)
	if err != nil {
		return core.Persistence("update", string(kind), err)
	}
	row, err := decodeCells(raw)
	if err != nil {
		return core.Persistence("update", string(kind), err)
	}
	row = layout.Pad(row)
	copy(row[column-1:], values)
	encoded, err := json.Marshal(row)
	if err != nil {
		return core.Persistence("update", string(kind), fmt.Errorf("encode row: %w", err))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rows SET cells = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(encoded), id); err != nil {
		return core.Persistence("update", string(kind), fmt.Errorf("update row: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return core.Persistence("update", string(kind), fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (g *sqliteGateway) DeleteRow(ctx context.Context, kind sheets.Kind, rowIndex int) error {
	if _, err := sheets.LayoutOf(kind); err != nil {
		return core.Persistence("delete", string(kind), err)
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("delete", string(kind), fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	id, _, err := g.rowAt(ctx, tx, kind, rowIndex)
	if err != nil {
		return core.Persistence("delete", string(kind), err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE id = ?`, id); err != nil {
		return core.Persistence("delete", string(kind), fmt.Errorf("delete row: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return core.Persistence("delete", string(kind), fmt.Errorf("commit: %w", err))
	}
	return nil
}

// rowAt resolves a 0-based data row index to its primary key.
func (g *sqliteGateway) rowAt(ctx context.Context, tx *sql.Tx, kind sheets.Kind, rowIndex int) (int64, string, error) {
	if rowIndex < 0 {
		return 0, "", sheets.ErrRowOutOfRange
	}
	var (
		id  int64
		raw string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, cells FROM rows WHERE owner = ? AND kind = ? ORDER BY id LIMIT 1 OFFSET ?`,
		g.owner, string(kind), rowIndex).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", sheets.ErrRowOutOfRange
	}
	if err != nil {
		return 0, "", fmt.Errorf("select row: %w", err)
	}
	return id, raw, nil
}

func decodeCells(raw string) (sheets.Row, error) {
	var row sheets.Row
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}
