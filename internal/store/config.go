package store

import (
	"path/filepath"

	"codeberg.org/mutker/torquectl/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/torquectl/torquectl.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 5
)

type Config struct {
	DBPath string
	// BatchSize is the number of buffered readings that triggers a flush.
	// Zero writes every reading immediately.
	BatchSize int
	// BatchTimeout is the periodic flush interval in seconds. Zero disables
	// the background flusher.
	BatchTimeout int
	// BackupDir receives a copy of the database before a schema migration.
	// Empty means a "backups" directory next to the database.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout,
		})
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
