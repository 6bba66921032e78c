package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VETRINA_DB_DSN", "")
	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, "8195", c.ServerPort)
	assert.Equal(t, int64(20), c.PageSize)
	assert.Equal(t, 2*time.Second, c.PushTimeoutDuration())
	assert.Equal(t, "host=localhost port=5432 user=vetrina password=vetrina dbname=vetrina sslmode=disable", c.DB.Dsn())
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("VETRINA_DB_DSN", "")
	dir := t.TempDir()
	file := filepath.Join(dir, "vetrina.toml")
	content := `
server_port = "9000"
handle_cors = false
page_size = 50
websocket_ping = "10s"

[db]
host = "db.internal"
name = "shop"
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	require.NoError(t, LoadConfig(file))

	c := Config()
	assert.Equal(t, "9000", c.ServerPort)
	assert.False(t, c.HandleCORS)
	assert.Equal(t, int64(50), c.PageSize)
	assert.Equal(t, 10*time.Second, c.WebsocketPingDuration())
	assert.Equal(t, "db.internal", c.DB.Host)
	assert.Equal(t, 5432, c.DB.Port)
	assert.Contains(t, c.DB.Dsn(), "dbname=shop")
}

func TestDsnOverride(t *testing.T) {
	t.Setenv("VETRINA_DB_DSN", "postgres://u:p@h/db")
	require.NoError(t, LoadConfig(""))
	assert.Equal(t, "postgres://u:p@h/db", Config().DB.Dsn())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("VETRINA_DB_DSN", "")
	file := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(file, []byte(`push_timeout = "soon"`), 0o600))
	assert.Error(t, LoadConfig(file))
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("10MB")
	require.NoError(t, err)
	assert.Equal(t, int64(10<<20), n)

	n, err = ParseSize("512kb")
	require.NoError(t, err)
	assert.Equal(t, int64(512<<10), n)

	n, err = ParseSize("100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	_, err = ParseSize("lots")
	assert.Error(t, err)
	_, err = ParseSize("0MB")
	assert.Error(t, err)
}
