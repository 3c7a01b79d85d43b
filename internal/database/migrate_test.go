package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	sql := string(body)
	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{"partners", "teams", "technicians", "installations", "settings"} {
		assert.Contains(t, sql, "CREATE TABLE "+table+" (")
	}
}

func TestEnsureDatabaseRejectsURLWithoutName(t *testing.T) {
	err := ensureDatabase("postgres://u:p@localhost:5432/?sslmode=disable", nil)
	assert.ErrorContains(t, err, "database name is empty")
}
