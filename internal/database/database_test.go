package database_test

import (
	"context"
	"testing"

	"github.com/psds-microservice/installation-service/internal/database"
	"github.com/psds-microservice/installation-service/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPing(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, database.Ping(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Error(t, database.Ping(context.Background(), db))
}

func TestModelsAreMigratable(t *testing.T) {
	db := dbtest.Open(t)
	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}
