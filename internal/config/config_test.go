package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SCHEDULE_REJECT_OVERLAP", "true")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RejectOverlap)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.TravelTimeout)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "http_port: \"7000\"\ndb:\n  database: overlay_db\nauth:\n  token_ttl: 1h\nreject_overlap: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_HOST", "db.local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.HTTPPort)
	assert.Equal(t, "overlay_db", cfg.DB.Database)
	assert.Equal(t, "db.local", cfg.DB.Host)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.RejectOverlap)
}

func TestValidate(t *testing.T) {
	cfg := &Config{AppEnv: "production"}
	cfg.DB.Host = "h"
	cfg.DB.Database = "d"
	cfg.DB.Password = "p"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.JWTSecret = defaultJWTSecret
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.DB.Database = ""
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURLEscapesPassword(t *testing.T) {
	cfg := &Config{}
	cfg.DB.User = "u"
	cfg.DB.Password = "p@ss word"
	cfg.DB.Host = "h"
	cfg.DB.Port = "5432"
	cfg.DB.Database = "d"
	cfg.DB.SSLMode = "disable"
	assert.Equal(t, "postgres://u:p%40ss+word@h:5432/d?sslmode=disable", cfg.DatabaseURL())
}
