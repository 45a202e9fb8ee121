package config

import "time"

// Storage backends for the persisted state layers.
const (
	StorageSQLite = "sqlite"
	StorageS3     = "s3"
)

// Config holds runtime settings for the dialkeeper CLI.
//
// StorageBackend selects where the state layers and the vault record are
// written. They always share one backend so a sealed layer never travels
// without its salt.
type Config struct {
	PlatformURL          string
	DatabaseDSN          string
	RequestTimeout       time.Duration
	TokenRefreshInterval time.Duration
	LogLevel             string

	StorageBackend string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.PlatformURL = "https://partner.voipgrid.nl/"
	c.DatabaseDSN = "dialkeeper.db"
	c.RequestTimeout = 10 * time.Second
	c.TokenRefreshInterval = 5 * time.Minute
	c.LogLevel = "info"
	c.StorageBackend = StorageSQLite
	c.S3Region = "us-east-1"
	c.S3Prefix = "dialkeeper"
}

// LoadConfig applies defaults, then the config file named by -c/-config, then
// command-line flags. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
