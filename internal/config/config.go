package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRE_"

type Config struct {
	Output OutputConfig `yaml:"output"`
	OCR    OCRConfig    `yaml:"ocr"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type OutputConfig struct {
	Format string `yaml:"format"` // xlsx or csv
	Path   string `yaml:"path"`
	Header bool   `yaml:"header"`
}

type OCRConfig struct {
	Enabled        bool   `yaml:"enabled"`
	TessdataPrefix string `yaml:"tessdata_prefix"`
	Language       string `yaml:"language"`
}

// StoreConfig locates the SQLite run history. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	// StaticDir, when set, is served as a single-page web front end.
	StaticDir   string `yaml:"static_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Output: OutputConfig{Format: "xlsx", Header: true},
		OCR:    OCRConfig{Language: "por"},
		Server: ServerConfig{Addr: ":8080", MaxUploadMB: 32},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A .env file in the working directory is loaded
// first when present. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DRE_* environment variables.
func (c *Config) ApplyEnv() {
	c.Output.Format = getEnv("OUTPUT_FORMAT", c.Output.Format)
	c.Output.Path = getEnv("OUTPUT_PATH", c.Output.Path)
	c.Output.Header = getEnvBool("OUTPUT_HEADER", c.Output.Header)
	c.OCR.Enabled = getEnvBool("OCR_ENABLED", c.OCR.Enabled)
	c.OCR.TessdataPrefix = getEnv("OCR_TESSDATA_PREFIX", c.OCR.TessdataPrefix)
	c.OCR.Language = getEnv("OCR_LANGUAGE", c.OCR.Language)
	c.Store.Path = getEnv("DB_PATH", c.Store.Path)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.MaxUploadMB = getEnvInt("SERVER_MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Server.StaticDir = getEnv("SERVER_STATIC_DIR", c.Server.StaticDir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) Validate() error {
	var errs []error
	c.Output.Format = strings.ToLower(c.Output.Format)
	switch c.Output.Format {
	case "xlsx", "csv":
	default:
		errs = append(errs, fmt.Errorf("output format %q: must be xlsx or csv", c.Output.Format))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: must be text or json", c.Log.Format))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
