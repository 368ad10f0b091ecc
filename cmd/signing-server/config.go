package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/audit"
)

// Config holds the standalone signing server configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	DocumentsDir    string        `yaml:"documents_dir"`
	SignedDir       string        `yaml:"signed_dir"` // empty disables artifact storage
	AuditDBPath     string        `yaml:"audit_db_path"`
	HashAlgorithm   string        `yaml:"hash_algorithm"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8080",
		DocumentsDir:    "documents",
		AuditDBPath:     "signing_audit.db",
		HashAlgorithm:   audit.SHA256,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DocumentsDir == "" {
		return fmt.Errorf("documents_dir is required")
	}
	if c.AuditDBPath == "" {
		return fmt.Errorf("audit_db_path is required")
	}
	if _, err := audit.NewHasher(c.HashAlgorithm); err != nil {
		return fmt.Errorf("hash_algorithm: %w", err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be > 0")
	}
	return nil
}
