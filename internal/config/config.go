package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Defaults applied by NewConfig and WithDefaults.
const (
	DefaultLogLevel    = "info"
	DefaultReadWorkers = 8
	DefaultServerAddr  = ":3000"
)

// Config represents the main configuration for cx.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"`  // debug, info, warn or error
	StorePath  string           `toml:"store_path"` // projects.json location
	Database   DatabaseConfig   `toml:"database"`
	Export     ExportConfig     `toml:"export"`
	Encryption EncryptionConfig `toml:"encryption"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
}

// DatabaseConfig represents configuration for the export history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ExportConfig controls tree collection.
type ExportConfig struct {
	ReadWorkers        int    `toml:"read_workers"`
	FollowSymlinks     bool   `toml:"follow_symlinks"`
	IgnoreFile         string `toml:"ignore_file"`          // glob ignore file such as ".cxignore"; empty disables
	NormalizeFileTypes bool   `toml:"normalize_file_types"` // let "log" in ignoredFileTypes also match ".log"
}

// EncryptionConfig holds paths to the age key pair used for artifact encryption.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// S3Config configures the sink used for s3:// export destinations.
type S3Config struct {
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `toml:"use_path_style,omitempty"`
}

// Enabled reports whether enough is configured to build an S3 client.
func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != ""
}

// ServerConfig configures `cx serve`.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		LogLevel:  DefaultLogLevel,
		StorePath: filepath.Join(baseDir, "storage", "projects.json"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Export: ExportConfig{
			ReadWorkers: DefaultReadWorkers,
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "cx.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "cx.key"),
		},
		Server: ServerConfig{
			Addr:        DefaultServerAddr,
			CORSOrigins: []string{"http://localhost:5173"},
		},
	}
}

// WithDefaults fills unset fields that have a default derived from BaseDir.
func (c *Config) WithDefaults() *Config {
	d := NewConfig(c.BaseDir)
	if c.LogDir == "" {
		c.LogDir = d.LogDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.StorePath == "" {
		c.StorePath = d.StorePath
	}
	if c.Database.Type == "" {
		c.Database = d.Database
	}
	if c.Export.ReadWorkers == 0 {
		c.Export.ReadWorkers = d.Export.ReadWorkers
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = d.Encryption.Type
	}
	if c.Encryption.PublicKeyPath == "" {
		c.Encryption.PublicKeyPath = d.Encryption.PublicKeyPath
	}
	if c.Encryption.PrivateKeyPath == "" {
		c.Encryption.PrivateKeyPath = d.Encryption.PrivateKeyPath
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	return c
}

// Validate checks field values.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDir, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Database),
		validation.Field(&c.Export),
		validation.Field(&c.Encryption),
	)
}

// Validate checks the database settings.
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In("sqlite", "memory")),
		validation.Field(&c.DataDir, validation.When(c.Type == "sqlite", validation.Required)),
	)
}

// Validate checks the export settings.
func (c ExportConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ReadWorkers, validation.Min(0), validation.Max(256)),
	)
}

// Validate checks the encryption settings.
func (c EncryptionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.In("age", "test")),
		validation.Field(&c.PublicKeyPath, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.PrivateKeyPath, validation.When(c.Enabled, validation.Required)),
	)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path, applies
// defaults and validates it.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
