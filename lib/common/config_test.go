package common

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"maple", func(c *Config) { c.Engine = EngineMaple; c.DataDir = "" }, false},
		{"pebble in memory", func(c *Config) { c.DataDir = ""; c.InMemory = true }, false},
		{"pebble without dir", func(c *Config) { c.DataDir = "" }, true},
		{"unknown engine", func(c *Config) { c.Engine = "bolt" }, true},
		{"zero max batch", func(c *Config) { c.MaxBatch = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := DefaultConfig()
			tt.modify(conf)
			if tt.wantErr {
				assert.Error(t, conf.Validate())
			} else {
				assert.NoError(t, conf.Validate())
			}
		})
	}
}

func TestOpenDatabase(t *testing.T) {
	conf := DefaultConfig()
	conf.InMemory = true
	database, err := conf.OpenDatabase()
	require.NoError(t, err)
	assert.Equal(t, db.ImplPebble, database.GetInfo().DbType)
	require.NoError(t, database.Close())

	conf = DefaultConfig()
	conf.Engine = EngineMaple
	database, err = conf.OpenDatabase()
	require.NoError(t, err)
	assert.Equal(t, db.ImplMaple, database.GetInfo().DbType)
	require.NoError(t, database.Close())

	conf.Engine = "bolt"
	_, err = conf.OpenDatabase()
	assert.Error(t, err)
}

func TestMapleSnapshotFile(t *testing.T) {
	conf := DefaultConfig()
	conf.Engine = EngineMaple
	conf.SnapshotFile = filepath.Join(t.TempDir(), "maple.snapshot")

	database, err := conf.OpenDatabase()
	require.NoError(t, err)
	require.NoError(t, database.Set([]byte("k"), []byte("v")))
	require.NoError(t, database.Close())

	database, err = conf.OpenDatabase()
	require.NoError(t, err)
	defer database.Close()

	value, found, err := database.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", string(value))
}

func TestConfigString(t *testing.T) {
	conf := DefaultConfig()
	out := conf.String()
	assert.True(t, strings.Contains(out, "STORAGE"))
	assert.True(t, strings.Contains(out, "pebble"))
	assert.True(t, strings.Contains(out, "1024 entries"))
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)

	require.NoError(t, InitLoggers(DefaultConfig()))
}
