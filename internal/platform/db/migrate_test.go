package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_pictures.up.sql": {Data: []byte("SELECT 2;")},
		"0001_init.up.sql":     {Data: []byte("SELECT 1;")},
		"0001_init.down.sql":   {Data: []byte("SELECT 0;")},
		"README.md":            {Data: []byte("docs")},
		"archive/0000.up.sql":  {Data: []byte("SELECT 0;")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_pictures.up.sql"}, files)
}
