// Package config loads runtime configuration for the catalog CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string          address:port of the catalog gRPC endpoint
//	-i int             online status check interval (seconds)
//	-t int             remote request timeout (seconds)
//	-debounce int      delay before a requested sync starts (milliseconds)
//	-d string          local database file
//	-cache string      directory for transient image files
//	-l string          log file
//	-log-level string  debug, info, warn or error
//	-p int             products per page
//	-pull              refresh confirmed products on every sync
//	-role string       admin or employee
//	-user string       actor id recorded on changes
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s",
//	  "sync_debounce": "500ms",
//	  "database_path": "catalog.db",
//	  "cache_dir": "cache",
//	  "log_file": "productkeeper.log",
//	  "log_level": "info",
//	  "per_page": 5,
//	  "pull_products": false,
//	  "actor_role": "admin",
//	  "actor_id": "u-1"
//	}
package config
