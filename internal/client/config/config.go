// Package config loads the client's runtime settings: defaults first, then a
// JSON config file, then command-line flags, with later sources winning.
package config

import "time"

// ObjectStoreMode selects how attachment content is transferred.
type ObjectStoreMode string

const (
	// ObjectStorePresigned transfers through URLs presigned by the server.
	ObjectStorePresigned ObjectStoreMode = "presigned"
	// ObjectStoreS3 talks to an S3-compatible endpoint directly.
	ObjectStoreS3 ObjectStoreMode = "s3"
)

// Config holds runtime settings for the sync client.
type Config struct {
	ServerEndpointAddr  string
	DatabasePath        string
	FilesDir            string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	RequestTimeout      time.Duration

	ObjectStore ObjectStoreMode

	// Direct object storage settings, used only in ObjectStoreS3 mode.
	S3Region    string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "papersync.db"
	c.FilesDir = "files"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.ObjectStore = ObjectStorePresigned
	c.S3Region = "us-east-1"
	c.S3Bucket = "papersync"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
