package config

import (
	"flag"
	"os"
	"time"

	"github.com/avdeyev/catchdex/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the server API
//	-d string   sqlite database path
//	-i int      sync interval in seconds
//	-l string   log level (debug, info, warn, error)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the server API")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "sqlite database path")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
