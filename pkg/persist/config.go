// Package persist stores a document's committed-update log in a Badger KV
// store so a document can be rebuilt after a restart. It is an adapter
// above the document runtime; the core table layer does not depend on it.
package persist

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// Config 持久化配置
type Config struct {
	// DataDir is the Badger data directory. Ignored when InMemory is set.
	DataDir string
	// InMemory keeps the store in memory, for tests.
	InMemory bool
	// Logger receives adapter diagnostics. Defaults to a no-op logger.
	Logger doc.Logger
}

// DefaultConfig returns a disk-backed configuration.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		Logger:  doc.NewNoOpLogger(),
	}
}

func (c *Config) normalize() *Config {
	if c == nil {
		c = &Config{InMemory: true}
	}
	if c.Logger == nil {
		c.Logger = doc.NewNoOpLogger()
	}
	return c
}
