package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/dialkeeper/internal/flagx"
	"github.com/dmitrijs2005/dialkeeper/internal/timex"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk shape of Config. Absent keys leave the current
// value untouched.
type fileConfig struct {
	PlatformURL          string          `json:"platform_url" toml:"platform_url"`
	DatabaseDSN          string          `json:"database_dsn" toml:"database_dsn"`
	RequestTimeout       timex.Duration  `json:"request_timeout" toml:"request_timeout"`
	TokenRefreshInterval *timex.Duration `json:"token_refresh_interval" toml:"token_refresh_interval"`
	LogLevel             string          `json:"log_level" toml:"log_level"`

	Storage struct {
		Backend      string `json:"backend" toml:"backend"`
		Bucket       string `json:"bucket" toml:"bucket"`
		Region       string `json:"region" toml:"region"`
		BaseEndpoint string `json:"base_endpoint" toml:"base_endpoint"`
		AccessKey    string `json:"access_key" toml:"access_key"`
		SecretKey    string `json:"secret_key" toml:"secret_key"`
		Prefix       string `json:"prefix" toml:"prefix"`
	} `json:"storage" toml:"storage"`
}

// parseFile overlays cfg with the file given by -c/-config. Files ending in
// .toml are read as TOML, anything else as JSON. Read or decode errors panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}
	if err := loadFile(cfg, path); err != nil {
		panic(err)
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &fc)
	} else {
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return err
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.PlatformURL, fc.PlatformURL)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	// zero is meaningful here: it disables the refresher
	if fc.TokenRefreshInterval != nil {
		cfg.TokenRefreshInterval = fc.TokenRefreshInterval.Duration
	}

	setString(&cfg.StorageBackend, fc.Storage.Backend)
	setString(&cfg.S3Bucket, fc.Storage.Bucket)
	setString(&cfg.S3Region, fc.Storage.Region)
	setString(&cfg.S3BaseEndpoint, fc.Storage.BaseEndpoint)
	setString(&cfg.S3AccessKey, fc.Storage.AccessKey)
	setString(&cfg.S3SecretKey, fc.Storage.SecretKey)
	setString(&cfg.S3Prefix, fc.Storage.Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
