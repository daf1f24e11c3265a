package metadata

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// errPathRequired is returned when no database path is configured.
var errPathRequired = errors.New("database path is required")

// pool wraps sqlitex.Pool with the connection pragmas and schema applied on first use.
type pool struct {
	inner *sqlitex.Pool
}

func openPool(path string, size int) (*pool, error) {
	if path == "" {
		return nil, errPathRequired
	}

	if size <= 0 {
		size = max(runtime.NumCPU(), minPoolSize)
	}

	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &pool{inner: inner}, nil
}

const minPoolSize = 4

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

func (p *pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take connection: %w", err)
	}

	return conn, nil
}

func (p *pool) put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
