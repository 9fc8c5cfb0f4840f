package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-w int      database connect retry budget, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-ttl int    presigned image URL lifetime, minutes
//	-log-level  debug, info, warn or error
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// layers (such as -c) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-w", "-u", "-p", "-b", "-g", "-e", "-ttl", "-log-level"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	connectTimeout := fs.Int("w", int(config.DatabaseConnectTimeout.Seconds()), "database connect retry budget (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 image bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	imageURLTTL := fs.Int("ttl", int(config.ImageURLTTL.Minutes()), "presigned image URL lifetime (in minutes)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DatabaseConnectTimeout = time.Duration(*connectTimeout) * time.Second
	config.ImageURLTTL = time.Duration(*imageURLTTL) * time.Minute
}
