// Package config loads the responder client configuration.
package config

import (
	"flag"
	"os"

	"github.com/google/uuid"
)

// Config holds the responder client configuration
type Config struct {
	EdgeURL     string
	IncidentID  string
	ResponderID string
	LogLevel    string
}

// Load loads configuration from command line flags and environment variables
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.EdgeURL, "edge", "ws://localhost:3000/", "edge node message channel URL")
	flag.StringVar(&cfg.IncidentID, "incident", "incident-1", "incident to join")
	flag.StringVar(&cfg.ResponderID, "responder", "", "responder identity (generated if empty)")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	// Override with environment variables if set
	if url := os.Getenv("EDGE_URL"); url != "" {
		cfg.EdgeURL = url
	}
	if incident := os.Getenv("INCIDENT_ID"); incident != "" {
		cfg.IncidentID = incident
	}
	if responder := os.Getenv("RESPONDER_ID"); responder != "" {
		cfg.ResponderID = responder
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}

	if cfg.ResponderID == "" {
		cfg.ResponderID = "responder-" + uuid.NewString()[:8]
	}
	return cfg
}
