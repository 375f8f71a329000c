package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/migrations"
)

func TestMigratorLoadSortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0010_indexes.sql": {Data: []byte("SELECT 10;")},
		"0002_outbox.sql":  {Data: []byte("SELECT 2;")},
		"0001_init.sql":    {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("docs")},
		"seed.sql":         {Data: []byte("SELECT 0;")},
	}

	loaded, err := NewMigrator(nil, fsys).Load()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{loaded[0].Version, loaded[1].Version, loaded[2].Version})
	assert.Equal(t, "0001_init.sql", loaded[0].Name)
	assert.Equal(t, "SELECT 1;", loaded[0].SQL)
}

func TestMigratorLoadRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.sql": {Data: []byte("SELECT 1;")},
		"001_other.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewMigrator(nil, fsys).Load()
	assert.Error(t, err)
}

func TestEmbeddedSchema(t *testing.T) {
	loaded, err := NewMigrator(nil, migrations.FS).Load()
	require.NoError(t, err)
	require.NotEmpty(t, loaded)
	assert.Equal(t, 1, loaded[0].Version)
	assert.Contains(t, loaded[0].SQL, "EXCLUDE USING gist")
	assert.Contains(t, loaded[0].SQL, "UNIQUE (tenant_id, phone)")
}
