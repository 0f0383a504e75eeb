package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/units"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath   = "/etc/torquectl/torquectl.toml"
	DefaultEnvPrefix    = "TORQUECTL"
	DefaultLogLevel     = "info"
	DefaultBaudRate     = 9600
	DefaultReadTimeout  = time.Second
	DefaultDatabase     = "/var/lib/torquectl/torquectl.db"
	DefaultBatchSize    = 10
	DefaultBatchTimeout = 5
)

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"port":          "port",
	"baud":          "baud",
	"read-timeout":  "read_timeout",
	"log-level":     "log_level",
	"database":      "database",
	"batch-size":    "batch_size",
	"batch-timeout": "batch_timeout",
	"backup-dir":    "backup_dir",
}

type Config struct {
	Port         string         `mapstructure:"port"`
	Baud         int            `mapstructure:"baud"`
	ReadTimeout  time.Duration  `mapstructure:"read_timeout"`
	LogLevel     string         `mapstructure:"log_level"`
	Database     string         `mapstructure:"database"`
	BatchSize    int            `mapstructure:"batch_size"`
	BatchTimeout int            `mapstructure:"batch_timeout"`
	BackupDir    string         `mapstructure:"backup_dir"`
	Units        units.Synonyms `mapstructure:"units"`

	file string
}

var _ Provider = (*Config)(nil)

// Load reads the configuration file, the environment and any bound flags, in
// increasing order of precedence, and validates the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	file := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
		file = path
	}

	if o.flags != nil {
		for name, key := range flagKeys {
			f := o.flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.file = file
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	syn := units.DefaultSynonyms()

	v.SetDefault("port", "")
	v.SetDefault("baud", DefaultBaudRate)
	v.SetDefault("read_timeout", DefaultReadTimeout)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("batch_timeout", DefaultBatchTimeout)
	v.SetDefault("backup_dir", "")
	v.SetDefault("units.ft_lb", syn.FtLb)
	v.SetDefault("units.in_lb", syn.InLb)
	v.SetDefault("units.nm", syn.Nm)
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Baud <= 0 {
		return errFactory.WithData(errors.ErrInvalidBaudRate, c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidReadTimeout, c.ReadTimeout.String())
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout,
		})
	}

	return nil
}

func (c *Config) GetPort() string {
	return c.Port
}

func (c *Config) GetBaudRate() int {
	return c.Baud
}

func (c *Config) GetReadTimeout() time.Duration {
	return c.ReadTimeout
}

func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

func (c *Config) GetDatabasePath() string {
	return c.Database
}

func (c *Config) GetBatchSize() int {
	return c.BatchSize
}

func (c *Config) GetBatchTimeout() int {
	return c.BatchTimeout
}

func (c *Config) GetBackupDir() string {
	return c.BackupDir
}

func (c *Config) GetUnitSynonyms() units.Synonyms {
	return c.Units
}

// File returns the configuration file that was read, or "" when none existed.
func (c *Config) File() string { return c.file }
