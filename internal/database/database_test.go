package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "data.db?"+sqlitePragmas, sqliteDSN("data.db"))
	assert.Equal(t, "file:x?mode=memory&"+sqlitePragmas, sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "x.db?_pragma=journal_mode(WAL)", sqliteDSN("x.db?_pragma=journal_mode(WAL)"))
}

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)

	var n int
	require.NoError(t, db.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost:5432/vault"))
	assert.True(t, isPostgres("postgresql://localhost/vault"))
	assert.False(t, isPostgres("data.db"))
	assert.False(t, isPostgres("file::memory:?cache=shared"))
}

func TestConnect_RejectsMalformedPostgresURL(t *testing.T) {
	_, err := Connect("postgres://u:p@localhost:notaport/vault")
	assert.Error(t, err)
}
