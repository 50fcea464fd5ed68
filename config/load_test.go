package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/errors"
)

func TestLoad_Defaults(t *testing.T) {
	conf, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":memory:", conf.Store.SqlitePath)
	assert.Equal(t, 768, conf.Store.VectorDimension)
	assert.Equal(t, 30, conf.Query.CandidateLimit)
	assert.Equal(t, 7, conf.Query.ResultLimit)
	assert.Equal(t, float32(0.6), conf.Query.HistoryRelevanceThreshold)
	assert.Equal(t, 15, conf.Session.HistoryLimit)
	assert.Equal(t, "tr", conf.Session.DefaultLanguage)
}

func TestLoad_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  sqlitePath: /tmp/aix.db
query:
  resultLimit: 3
session:
  defaultLanguage: en
`), 0o644))

	conf, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/aix.db", conf.Store.SqlitePath)
	assert.Equal(t, 3, conf.Query.ResultLimit)
	assert.Equal(t, "en", conf.Session.DefaultLanguage)
	// Untouched fields keep their defaults.
	assert.Equal(t, 768, conf.Store.VectorDimension)
}

func TestLoad_InvalidDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  vectorDimension: -1
`), 0o644))

	_, err := config.Load(path)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AIX_SQLITE_PATH", "/var/lib/aix/data.db")
	t.Setenv("AIX_ADDR", "0.0.0.0:9999")

	conf, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/aix/data.db", conf.Store.SqlitePath)
	assert.Equal(t, "0.0.0.0:9999", conf.Server.Addr)
}
