// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entrystore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	address BLOB PRIMARY KEY,
	data    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	address   BLOB PRIMARY KEY,
	base      BLOB NOT NULL,
	target    BLOB NOT NULL,
	link_type TEXT NOT NULL,
	tag       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS links_by_base ON links (base, link_type);

CREATE TABLE IF NOT EXISTS headers (
	author  BLOB NOT NULL,
	seq     INTEGER NOT NULL,
	address BLOB NOT NULL,
	data    BLOB NOT NULL,
	PRIMARY KEY (author, seq)
);
`

// SQLiteConfig holds the parameters for opening a persistent store.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize defaults to sqlitepool.DefaultPoolSize.
	PoolSize int

	Logger *slog.Logger
}

// SQLite is a persistent Backend. Rows are inserted in creation order,
// and listings return them in that order by rowid.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		Schema:   schema,
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return &SQLite{pool: pool, logger: logger}, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func (s *SQLite) Commit(ctx context.Context, data []byte) (address.Address, error) {
	addr := record.AddressOfBytes(data)
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO entries (address, data) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{addr[:], data}})
	})
	if err != nil {
		return address.Address{}, &StoreError{Op: "commit", Err: err}
	}
	return addr, nil
}

func (s *SQLite) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	var data []byte
	found := false
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT data FROM entries WHERE address = ?",
			&sqlitex.ExecOptions{
				Args: []any{addr[:]},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					data = columnBytes(stmt, 0)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	if !found {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *SQLite) Link(ctx context.Context, base, target address.Address, linkType, tag string) (LinkHandle, error) {
	handle, err := NewLinkHandle(base, target, linkType, tag)
	if err != nil {
		return LinkHandle{}, err
	}
	err = s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		for _, end := range []struct {
			name string
			addr address.Address
		}{{"base", base}, {"target", target}} {
			exists, err := entryExists(conn, end.addr)
			if err != nil {
				return err
			}
			if !exists {
				return missing(end.name, end.addr)
			}
		}
		return sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO links (address, base, target, link_type, tag) VALUES (?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{handle.Address[:], base[:], target[:], linkType, tag}})
	})
	if err != nil {
		return LinkHandle{}, &StoreError{Op: "link", Err: err}
	}
	return handle, nil
}

func (s *SQLite) Links(ctx context.Context, base address.Address, linkType, tag Match) ([]address.Address, error) {
	var targets []address.Address
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT target, link_type, tag FROM links WHERE base = ? ORDER BY rowid",
			&sqlitex.ExecOptions{
				Args: []any{base[:]},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					if !linkType.Matches(stmt.ColumnText(1)) || !tag.Matches(stmt.ColumnText(2)) {
						return nil
					}
					target, err := columnAddress(stmt, 0)
					if err != nil {
						return err
					}
					targets = append(targets, target)
					return nil
				},
			})
	})
	if err != nil {
		return nil, &StoreError{Op: "links", Err: err}
	}
	return targets, nil
}

func (s *SQLite) Append(ctx context.Context, header chain.Header) error {
	author := header.AuthorAddress()
	data, err := chain.Encode(header)
	if err != nil {
		return err
	}
	headerAddress, err := header.Address()
	if err != nil {
		return err
	}

	// Chain rule violations are returned as-is, not as store failures.
	var rejected error
	err = s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		existing, err := loadHeaders(conn, author)
		if err != nil {
			return err
		}
		duplicate, err := checkAppend(existing, header)
		if err != nil {
			rejected = err
			return err
		}
		if duplicate {
			return nil
		}
		return sqlitex.Execute(conn,
			"INSERT INTO headers (author, seq, address, data) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{author[:], int64(header.Seq), headerAddress[:], data}})
	})
	if rejected != nil {
		return rejected
	}
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

func (s *SQLite) Headers(ctx context.Context, author address.Address) ([]chain.Header, error) {
	var headers []chain.Header
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		var err error
		headers, err = loadHeaders(conn, author)
		return err
	})
	if err != nil {
		return nil, &StoreError{Op: "headers", Err: err}
	}
	return headers, nil
}

func (s *SQLite) Authors(ctx context.Context) ([]address.Address, error) {
	var authors []address.Address
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT DISTINCT author FROM headers ORDER BY author",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					author, err := columnAddress(stmt, 0)
					if err != nil {
						return err
					}
					authors = append(authors, author)
					return nil
				},
			})
	})
	if err != nil {
		return nil, &StoreError{Op: "authors", Err: err}
	}
	return authors, nil
}

func (s *SQLite) Addresses(ctx context.Context) ([]address.Address, error) {
	var addresses []address.Address
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT address FROM entries ORDER BY rowid",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					addr, err := columnAddress(stmt, 0)
					if err != nil {
						return err
					}
					addresses = append(addresses, addr)
					return nil
				},
			})
	})
	if err != nil {
		return nil, &StoreError{Op: "addresses", Err: err}
	}
	return addresses, nil
}

func (s *SQLite) AllLinks(ctx context.Context) ([]LinkHandle, error) {
	var handles []LinkHandle
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT address, base, target, link_type, tag FROM links ORDER BY rowid",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					var handle LinkHandle
					var err error
					if handle.Address, err = columnAddress(stmt, 0); err != nil {
						return err
					}
					if handle.Base, err = columnAddress(stmt, 1); err != nil {
						return err
					}
					if handle.Target, err = columnAddress(stmt, 2); err != nil {
						return err
					}
					handle.Type = stmt.ColumnText(3)
					handle.Tag = stmt.ColumnText(4)
					handles = append(handles, handle)
					return nil
				},
			})
	})
	if err != nil {
		return nil, &StoreError{Op: "all links", Err: err}
	}
	return handles, nil
}

func entryExists(conn *sqlite.Conn, addr address.Address) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn,
		"SELECT 1 FROM entries WHERE address = ?",
		&sqlitex.ExecOptions{
			Args: []any{addr[:]},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	return exists, err
}

func loadHeaders(conn *sqlite.Conn, author address.Address) ([]chain.Header, error) {
	var headers []chain.Header
	err := sqlitex.Execute(conn,
		"SELECT data FROM headers WHERE author = ? ORDER BY seq",
		&sqlitex.ExecOptions{
			Args: []any{author[:]},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				header, err := chain.Decode(columnBytes(stmt, 0))
				if err != nil {
					return err
				}
				headers = append(headers, header)
				return nil
			},
		})
	return headers, err
}

func columnBytes(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}

func columnAddress(stmt *sqlite.Stmt, column int) (address.Address, error) {
	var addr address.Address
	if stmt.ColumnLen(column) != len(addr) {
		return addr, fmt.Errorf("column %d holds %d bytes, not an address", column, stmt.ColumnLen(column))
	}
	stmt.ColumnBytes(column, addr[:])
	return addr, nil
}

var (
	_ Backend = (*SQLite)(nil)
	_ Backend = (*Memory)(nil)
)
