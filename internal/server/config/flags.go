package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/edumate/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-grpc string  gRPC bind address (e.g. ":50051")
//	-d string     PostgreSQL DSN
//	-m string     MongoDB URL for the passkey store
//	-s string     session token HMAC key
//	-k string     verification token HMAC key
//	-t duration   session token lifetime (e.g. "1h")
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-l string     log level
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components (-c / -config) do not cause parse errors.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-m", "-s", "-k", "-t", "-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCAddr, "grpc", config.GRPCAddr, "gRPC address and port for health checks")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURL, "m", config.MongoURL, "MongoDB URL for passkeys")
	fs.StringVar(&config.SessionKey, "s", config.SessionKey, "session token key")
	fs.StringVar(&config.VerificationKey, "k", config.VerificationKey, "verification token key")
	fs.DurationVar(&config.SessionTokenTTL, "t", config.SessionTokenTTL, "session token validity")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
