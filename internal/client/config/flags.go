package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dialkeeper/internal/flagx"
)

// parseFlags populates Config from the command line.
//
//	-u string   platform API base URL
//	-d string   SQLite database path
//	-r int      token refresh interval in seconds, 0 disables
//	-l string   log level (debug, info, warn, error)
//
// Only these flags are parsed; everything else is filtered out with
// flagx.FilterArgs. Invalid values panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-d", "-r", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.PlatformURL, "u", cfg.PlatformURL, "platform API base URL")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "path of the local database")
	refresh := fs.Int("r", int(cfg.TokenRefreshInterval.Seconds()), "token refresh interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TokenRefreshInterval = time.Duration(*refresh) * time.Second
}
