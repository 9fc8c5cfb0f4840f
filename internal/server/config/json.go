package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/productkeeper/internal/flagx"
	"github.com/dmitrijs2005/productkeeper/internal/timex"
)

// JsonConfig is the JSON shape of Config. Durations use timex.Duration so
// they can be written as "30s" or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC       string         `json:"endpoint_addr_grpc"`
	DatabaseDSN            string         `json:"database_dsn"`
	DatabaseConnectTimeout timex.Duration `json:"database_connect_timeout"`
	S3RootUser             string         `json:"s3_root_user"`
	S3RootPassword         string         `json:"s3_root_password"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Region               string         `json:"s3_region"`
	S3BaseEndpoint         string         `json:"s3_base_endpoint"`
	ImageURLTTL            timex.Duration `json:"image_url_ttl"`
	LogLevel               string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Keys absent from the file keep their current
// value. If the file cannot be read or contains invalid JSON, the function
// panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.DatabaseConnectTimeout.Duration > 0 {
		config.DatabaseConnectTimeout = c.DatabaseConnectTimeout.Duration
	}
	if c.ImageURLTTL.Duration > 0 {
		config.ImageURLTTL = c.ImageURLTTL.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
