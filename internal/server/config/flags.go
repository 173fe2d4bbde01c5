package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/filevault/internal/flagx"
)

// parseFlags populates Config fields from short command-line flags. Flags
// not listed here (including -c/-config) are ignored.
//
//	-a string   HTTP bind address (":5000")
//	-l string   gRPC health bind address
//	-m string   worker metrics bind address
//	-d string   PostgreSQL DSN
//	-M string   metadata backend (postgres|memory)
//	-S string   session backend (redis|badger|memory)
//	-t int      session TTL, minutes
//	-r string   Redis address
//	-Q string   queue backend (redis|amqp|memory)
//	-x int      job attempts before dead-lettering
//	-n int      worker consumers per queue
//	-B string   blob backend (fs|s3|memory)
//	-f string   blob folder for the fs backend
//	-u -p -b -g -e  S3 user, password, bucket, region, endpoint
//	-s int      max request body, bytes
//	-v string   log level
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("filevault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.HealthAddrGRPC, "l", config.HealthAddrGRPC, "address and port of the gRPC health service")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port of the worker metrics endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MetadataBackend, "M", config.MetadataBackend, "metadata backend")
	fs.StringVar(&config.SessionBackend, "S", config.SessionBackend, "session backend")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session TTL (in minutes)")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.QueueBackend, "Q", config.QueueBackend, "queue backend")
	fs.IntVar(&config.QueueMaxAttempts, "x", config.QueueMaxAttempts, "job attempts before dead-lettering")
	fs.IntVar(&config.WorkerConcurrency, "n", config.WorkerConcurrency, "consumers per queue")
	fs.StringVar(&config.BlobBackend, "B", config.BlobBackend, "blob backend")
	fs.StringVar(&config.FolderPath, "f", config.FolderPath, "blob folder")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.Int64Var(&config.MaxUploadBytes, "s", config.MaxUploadBytes, "max request body (in bytes)")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := flagx.ParseKnown(fs, args); err != nil {
		return err
	}

	// only an explicit -t overrides, so sub-minute TTLs from JSON/env survive
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		}
	})
	return nil
}
