package mobi

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logicossoftware/go-mobi/internal/logging"
	"github.com/logicossoftware/go-mobi/palmdoc"
)

type readConfig struct {
	limits Limits
	logger logrus.FieldLogger
}

type ReadOption func(*readConfig)

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

// WithReadLogger sends header and trailer diagnostics to l at debug level.
func WithReadLogger(l logrus.FieldLogger) ReadOption {
	return func(c *readConfig) { c.logger = l }
}

type writeConfig struct {
	limits      Limits
	logger      logrus.FieldLogger
	compression Compression
	strategy    palmdoc.Strategy
	multibyte   bool
	locale      uint32
	now         func() time.Time
}

type WriteOption func(*writeConfig)

func WithWriteLimits(l Limits) WriteOption {
	return func(c *writeConfig) { c.limits = l }
}

func WithWriteLogger(l logrus.FieldLogger) WriteOption {
	return func(c *writeConfig) { c.logger = l }
}

// WithCompression selects how text records are stored. Only
// CompressionNone and CompressionPalmDOC can be written.
func WithCompression(c Compression) WriteOption {
	return func(cfg *writeConfig) { cfg.compression = c }
}

// WithStrategy selects the PalmDOC match finder.
func WithStrategy(s palmdoc.Strategy) WriteOption {
	return func(c *writeConfig) { c.strategy = s }
}

// WithMultibyte controls the multibyte trailing entry on text records.
// It is on by default.
func WithMultibyte(v bool) WriteOption {
	return func(c *writeConfig) { c.multibyte = v }
}

// WithLocale sets the MOBI header locale (a Windows LCID, 1033 by default).
func WithLocale(lcid uint32) WriteOption {
	return func(c *writeConfig) { c.locale = lcid }
}

// WithTime fixes the PDB creation and modification times.
func WithTime(t time.Time) WriteOption {
	return func(c *writeConfig) { c.now = func() time.Time { return t } }
}

func discardLogger() logrus.FieldLogger { return logging.Discard() }
