package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dkarpov/papersync/internal/flagx"
)

// Duration unmarshals either a string like "30s" or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	}
	return nil
}

// JsonConfig is the DTO for the JSON config file.
type JsonConfig struct {
	ServerEndpointAddr  string   `json:"server_endpoint_addr"`
	DatabasePath        string   `json:"database_path"`
	FilesDir            string   `json:"files_dir"`
	OnlineCheckInterval Duration `json:"online_check_interval"`
	SyncInterval        Duration `json:"sync_interval"`
	RequestTimeout      Duration `json:"request_timeout"`
	ObjectStore         string   `json:"object_store"`
	S3Region            string   `json:"s3_region"`
	S3Endpoint          string   `json:"s3_endpoint"`
	S3Bucket            string   `json:"s3_bucket"`
	S3AccessKey         string   `json:"s3_access_key"`
	S3SecretKey         string   `json:"s3_secret_key"`
}

// parseJson overlays Config with values from the JSON file named by the
// -c/-config flag. Missing flag means no JSON is loaded; unset fields keep
// their current values.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	applyJson(cfg, &jc)
}

func applyJson(cfg *Config, jc *JsonConfig) {
	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.FilesDir != "" {
		cfg.FilesDir = jc.FilesDir
	}
	if jc.OnlineCheckInterval != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval)
	}
	if jc.SyncInterval != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval)
	}
	if jc.RequestTimeout != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout)
	}
	if jc.ObjectStore != "" {
		cfg.ObjectStore = ObjectStoreMode(jc.ObjectStore)
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Endpoint != "" {
		cfg.S3Endpoint = jc.S3Endpoint
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
}
