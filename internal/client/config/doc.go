// Package config loads runtime configuration for the dialkeeper CLI.
//
// Sources, in increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional config file given with -c or -config. Files ending in
//     .toml are TOML, anything else is JSON.
//  3. Command-line flags -u, -d, -r and -l.
//
// Durations in files are strings such as "30s"; JSON also accepts integer
// nanoseconds. Example TOML:
//
//	platform_url = "https://partner.voipgrid.nl/"
//	database_dsn = "/var/lib/dialkeeper/state.db"
//	request_timeout = "10s"
//	token_refresh_interval = "5m"
//	log_level = "debug"
//
//	[storage]
//	backend = "s3"
//	bucket = "dialkeeper"
//	base_endpoint = "http://127.0.0.1:9000"
//	access_key = "minioadmin"
//	secret_key = "minioadmin"
package config
