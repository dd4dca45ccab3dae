package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zerodrop/zerodrop/internal/flagx"
	"github.com/zerodrop/zerodrop/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr string `json:"endpoint_addr"`
	DatabaseDSN  string `json:"database_dsn"`

	BlobBackend    string `json:"blob_backend"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	LocalBlobDir   string `json:"local_blob_dir"`

	MaxFileSizeBytes      int64 `json:"max_file_size_bytes"`
	ChunkedThresholdBytes int64 `json:"chunked_threshold_bytes"`

	MaxExpiryHorizon    timex.Duration `json:"max_expiry_horizon"`
	MinPBKDF2Iterations int            `json:"min_pbkdf2_iterations"`

	SweepInterval timex.Duration `json:"sweep_interval"`

	AnalyticsOrigin string `json:"analytics_origin"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN

	config.BlobBackend = BlobBackend(c.BlobBackend)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.LocalBlobDir = c.LocalBlobDir

	config.MaxFileSizeBytes = c.MaxFileSizeBytes
	config.ChunkedThresholdBytes = c.ChunkedThresholdBytes

	config.MaxExpiryHorizon = time.Duration(c.MaxExpiryHorizon.Duration)
	config.MinPBKDF2Iterations = c.MinPBKDF2Iterations

	config.SweepInterval = time.Duration(c.SweepInterval.Duration)

	config.AnalyticsOrigin = c.AnalyticsOrigin
}
