package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/store"
)

// FileName is the config file at the root of a tally project.
const FileName = "tally.yaml"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Book     BookConfig           `yaml:"book"`
	Database store.DatabaseConfig `yaml:"database"`
	Log      log.Config           `yaml:"log"`
	Report   ReportConfig         `yaml:"report"`
	Verify   VerifyConfig         `yaml:"verify"`
}

// BookConfig identifies the ledger.
type BookConfig struct {
	Name string `yaml:"name" env:"TALLY_BOOK_NAME" validate:"required"`
}

// ReportConfig holds statement defaults that flags can override.
type ReportConfig struct {
	Depth    int    `yaml:"depth" env:"TALLY_REPORT_DEPTH" env-default:"3" validate:"gte=0"`
	Format   string `yaml:"format" env:"TALLY_REPORT_FORMAT" env-default:"table" validate:"oneof=table markdown csv"`
	Currency string `yaml:"currency" env:"TALLY_REPORT_CURRENCY" env-default:"USD" validate:"len=3"`
}

// VerifyConfig controls where verify records its findings.
type VerifyConfig struct {
	AuditLog    string `yaml:"audit_log" env:"TALLY_VERIFY_AUDIT_LOG" env-default:"logs/verify-log.csv"`
	MetricsFile string `yaml:"metrics_file,omitempty" env:"TALLY_VERIFY_METRICS_FILE"`
}

// Load reads a tally.yaml file from disk, then applies a sibling .env file
// (if present) and TALLY_* environment variables on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for a new sqlite-backed project.
func Default(bookName string) *Config {
	return &Config{
		Book: BookConfig{Name: bookName},
		Database: store.DatabaseConfig{
			Driver: "sqlite",
			Name:   "tally.db",
		},
		Log: log.Config{
			Format: "console",
			Level:  log.LevelInfo,
			Output: "stderr",
		},
		Report: ReportConfig{
			Depth:    3,
			Format:   "table",
			Currency: "USD",
		},
		Verify: VerifyConfig{
			AuditLog: filepath.Join("logs", "verify-log.csv"),
		},
	}
}

// Resolve makes relative file paths in cfg relative to dir, the directory
// holding tally.yaml.
func (cfg *Config) Resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if cfg.Database.Driver == "sqlite" || cfg.Database.Driver == "" {
		cfg.Database.Name = abs(cfg.Database.Name)
	}
	switch cfg.Log.Output {
	case "", "stderr", "stdout", "discard":
	default:
		cfg.Log.Output = abs(cfg.Log.Output)
	}
	cfg.Verify.AuditLog = abs(cfg.Verify.AuditLog)
	cfg.Verify.MetricsFile = abs(cfg.Verify.MetricsFile)
}
