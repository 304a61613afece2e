// Package config loads mobitool defaults from a TOML file.
//
//	[book]
//	author = "Jane Doe"
//	publisher = "Example Press"
//	language = "en"
//	compression = "palmdoc"
//
//	[unpack]
//	dump_compression = "zstd"
//
//	[log]
//	level = "debug"
//	format = "json"
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
)

type Config struct {
	Book   Book   `toml:"book"`
	Unpack Unpack `toml:"unpack"`
	Log    Log    `toml:"log"`
}

type Book struct {
	Author      string `toml:"author"`
	Publisher   string `toml:"publisher"`
	Language    string `toml:"language"`
	Compression string `toml:"compression"`
}

type Unpack struct {
	DumpCompression string `toml:"dump_compression"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Book: Book{Compression: "palmdoc"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load reads path and overlays it on Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

// Parse decodes TOML data over Default.
func Parse(data []byte) (Config, error) {
	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	cfg.merge(file)
	if err := cfg.validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Book.Author, o.Book.Author)
	set(&c.Book.Publisher, o.Book.Publisher)
	set(&c.Book.Language, o.Book.Language)
	set(&c.Book.Compression, o.Book.Compression)
	set(&c.Unpack.DumpCompression, o.Unpack.DumpCompression)
	set(&c.Log.Level, o.Log.Level)
	set(&c.Log.Format, o.Log.Format)
}

func (c Config) validate() error {
	switch strings.ToLower(c.Book.Compression) {
	case "none", "palmdoc":
	default:
		return fmt.Errorf("config: book.compression must be \"none\" or \"palmdoc\", got %q", c.Book.Compression)
	}
	return nil
}
