package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobitool.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[book]
author = "Jane Doe"
language = "en"
compression = "none"

[unpack]
dump_compression = "zstd"

[log]
format = "json"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", cfg.Book.Author)
	assert.Equal(t, "", cfg.Book.Publisher)
	assert.Equal(t, "en", cfg.Book.Language)
	assert.Equal(t, "none", cfg.Book.Compression)
	assert.Equal(t, "zstd", cfg.Unpack.DumpCompression)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("[book\nauthor = "))
	require.Error(t, err)

	_, err = Parse([]byte("[book]\ncompression = \"huffcdic\"\n"))
	require.Error(t, err)
}
