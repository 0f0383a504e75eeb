package config

import (
	"time"

	"codeberg.org/mutker/torquectl/internal/units"
	"github.com/spf13/pflag"
)

// Provider defines the interface for accessing configuration values.
// Values are immutable after loading; Watch delivers a fresh Provider on change.
type Provider interface {
	// GetPort returns the serial device path
	GetPort() string

	// GetBaudRate returns the serial line speed
	GetBaudRate() int

	// GetReadTimeout returns how long a single serial read may block
	GetReadTimeout() time.Duration

	// GetLogLevel returns the configured logging level
	GetLogLevel() string

	// GetDatabasePath returns the path to the SQLite database
	GetDatabasePath() string

	// GetBatchSize returns the number of readings buffered per write
	GetBatchSize() int

	// GetBatchTimeout returns the periodic flush interval in seconds
	GetBatchTimeout() int

	// GetBackupDir returns where pre-migration backups go
	GetBackupDir() string

	// GetUnitSynonyms returns the unit spellings recognized per family
	GetUnitSynonyms() units.Synonyms
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
	flags      *pflag.FlagSet
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix.
// Default is "TORQUECTL".
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithFlags binds the known flags of fs over file and environment values.
// Only flags the user changed take precedence.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) error {
		o.flags = fs
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
