package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_api_keys.sql": {Data: []byte("ALTER TABLE workspaces ADD COLUMN api_key_read_hash TEXT;")},
		"001_init.sql":     {Data: []byte("CREATE TABLE workspaces (id UUID PRIMARY KEY);")},
		"notes.md":         {Data: []byte("not a migration")},
	}

	versions, err := migrationVersions(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_api_keys.sql"}, versions)
}

func TestMigrationVersionsEmptySet(t *testing.T) {
	versions, err := migrationVersions(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, versions)
}
