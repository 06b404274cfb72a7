// Package config loads the edge node configuration.
package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"time"
)

// Config holds the edge node configuration
type Config struct {
	Port     int
	BindAddr string
	LogLevel string

	// DedupTTL is the message effect window. A msgId replayed inside it is
	// acknowledged but not re-executed.
	DedupTTL time.Duration
}

// Load loads configuration from command line flags and environment variables
func Load() *Config {
	cfg := &Config{}

	var dedupTTLMs int
	flag.IntVar(&cfg.Port, "port", 3000, "listening port for the message channel and health endpoint")
	flag.StringVar(&cfg.BindAddr, "bind", "0.0.0.0", "bind address")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.IntVar(&dedupTTLMs, "dedup-ttl-ms", 900_000, "dedup effect window in milliseconds")
	flag.Parse()

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if ttl := os.Getenv("DEDUP_TTL_MS"); ttl != "" {
		if ms, err := strconv.Atoi(ttl); err == nil && ms > 0 {
			dedupTTLMs = ms
		}
	}

	cfg.DedupTTL = time.Duration(dedupTTLMs) * time.Millisecond
	return cfg
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}
