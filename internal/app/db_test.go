package app

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLiteJournalMode = "wal; DROP TABLE videos"
	dsn := sqliteDSN(cfg)

	path, query, ok := strings.Cut(dsn, "?")
	require.True(t, ok)
	assert.Equal(t, cfg.DBPath, path)
	q, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign_keys(1)", "busy_timeout(1000)", "synchronous(NORMAL)"}, q["_pragma"])
}

func TestPragmasOnEveryConnection(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLiteMaxOpenConns = 2
	db, err := openDB(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	c1, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()

	for i, c := range []*sql.Conn{c1, c2} {
		var timeout, fk int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1000, timeout, "conn %d", i)
		assert.Equal(t, 1, fk, "conn %d", i)
	}

	var mode string
	require.NoError(t, c2.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}
