// Package config loads opsctl settings from config.yaml, .env files,
// OPSCENTRE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. OPSCENTRE_POLL_INTERVAL.
	EnvPrefix = "OPSCENTRE"

	// FileName is the config file inside the data directory.
	FileName = "config.yaml"

	// DatabaseName is the local store inside the data directory.
	DatabaseName = "opscentre.db"
)

// Viper keys.
const (
	KeyConfig            = "config"
	KeyDataDir           = "data_dir"
	KeyPollInterval      = "poll_interval"
	KeyRequestTimeout    = "request_timeout"
	KeyLogLevel          = "log.level"
	KeyLogFile           = "log.file"
	KeyLogMaxSizeMB      = "log.max_size_mb"
	KeyRemoteAPIURL      = "remote.api_url"
	KeyRemoteFilename    = "remote.filename"
	KeyRemoteDescription = "remote.description"
	KeyRemoteToken       = "remote.token"
	KeyUser              = "user"
)

// Config is the effective configuration.
type Config struct {
	DataDir        string        `mapstructure:"data_dir"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Log            LogConfig     `mapstructure:"log"`
	Remote         RemoteConfig  `mapstructure:"remote"`
	// User is recorded in task audit logs.
	User string `mapstructure:"user"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type RemoteConfig struct {
	APIURL      string `mapstructure:"api_url"`
	Filename    string `mapstructure:"filename"`
	Description string `mapstructure:"description"`
	// Token is used when the stored sync settings hold no credential.
	Token string `mapstructure:"token"`
}

// DefaultDataDir returns ~/.opscentre, or .opscentre in the working
// directory when there is no home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".opscentre"
	}
	return filepath.Join(home, ".opscentre")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:        DefaultDataDir(),
		PollInterval:   60 * time.Second,
		RequestTimeout: 20 * time.Second,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Remote: RemoteConfig{
			APIURL:      "https://api.github.com",
			Filename:    "opscentre_data.json",
			Description: "SeniorCare OpsCentre Backup",
		},
		User: "Admin",
	}
}

// NewViper returns a viper instance with defaults and environment
// bindings installed. Callers bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeyRequestTimeout, d.RequestTimeout)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFile, d.Log.File)
	v.SetDefault(KeyLogMaxSizeMB, d.Log.MaxSizeMB)
	v.SetDefault(KeyRemoteAPIURL, d.Remote.APIURL)
	v.SetDefault(KeyRemoteFilename, d.Remote.Filename)
	v.SetDefault(KeyRemoteDescription, d.Remote.Description)
	v.SetDefault(KeyRemoteToken, d.Remote.Token)
	v.SetDefault(KeyUser, d.User)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the effective configuration from v.
//
// .env files in the working directory and the data directory are loaded
// first; variables already set in the environment win. The config file
// is KeyConfig when set, otherwise config.yaml in the data directory. A
// missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	loadDotEnv(".env")
	loadDotEnv(filepath.Join(expandHome(v.GetString(KeyDataDir)), ".env"))

	path := v.GetString(KeyConfig)
	if path == "" {
		path = filepath.Join(expandHome(v.GetString(KeyDataDir)), FileName)
	}
	path = expandHome(path)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	file := path
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		file = ""
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that viper cannot.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%s cannot be empty", KeyDataDir)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("%s must be at least 1s, got %s", KeyPollInterval, c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyRequestTimeout, c.RequestTimeout)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("%s cannot be negative", KeyLogMaxSizeMB)
	}
	return nil
}

// DatabasePath returns the local store path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseName)
}

// ConfigPath returns the file Load read, or where config init writes.
func (c *Config) ConfigPath() string {
	if c.File != "" {
		return c.File
	}
	return filepath.Join(c.DataDir, FileName)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Remote.Token = redact(out.Remote.Token)
	return &out
}

func redact(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	}
	return secret[:4] + "****"
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load(path)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// document is the on-disk layout of config.yaml.
type document struct {
	DataDir        string    `yaml:"data_dir"`
	PollInterval   string    `yaml:"poll_interval"`
	RequestTimeout string    `yaml:"request_timeout"`
	User           string    `yaml:"user"`
	Log            logDoc    `yaml:"log"`
	Remote         remoteDoc `yaml:"remote"`
}

type logDoc struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

type remoteDoc struct {
	APIURL      string `yaml:"api_url"`
	Filename    string `yaml:"filename"`
	Description string `yaml:"description"`
	Token       string `yaml:"token,omitempty"`
}

// MarshalYAML renders c in config.yaml layout.
func (c *Config) MarshalYAML() (any, error) {
	return document{
		DataDir:        c.DataDir,
		PollInterval:   c.PollInterval.String(),
		RequestTimeout: c.RequestTimeout.String(),
		User:           c.User,
		Log: logDoc{
			Level:     c.Log.Level,
			File:      c.Log.File,
			MaxSizeMB: c.Log.MaxSizeMB,
		},
		Remote: remoteDoc{
			APIURL:      c.Remote.APIURL,
			Filename:    c.Remote.Filename,
			Description: c.Remote.Description,
			Token:       c.Remote.Token,
		},
	}, nil
}

// ErrExists is returned by WriteFile when the file exists and force is false.
var ErrExists = errors.New("config file already exists")

// WriteFile writes c to path as YAML, creating parent directories.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte("# opsctl configuration. Environment variables OPSCENTRE_<KEY> override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
