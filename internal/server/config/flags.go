package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-m", "-f", "-d", "-s", "-t", "-r", "-x", "-o", "-n", "-k", "-l",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from short command-line flags.
//
//	-a string   gRPC bind address (":50051")
//	-m string   store driver: file, sqlite or postgres
//	-f string   data directory for the file and sqlite drivers
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x int      password reset token validity, minutes
//	-o int      session inactivity timeout, minutes
//	-n int      event log cap
//	-k string   event cap scope: global or user
//	-l string   log level
//	-u, -p, -b, -g, -e   S3 user, password, bucket, region, endpoint
//
// Other flags in args are ignored so the config file flag can coexist.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("userkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.StoreDriver, "m", config.StoreDriver, "store driver")
	fs.StringVar(&config.DataDir, "f", config.DataDir, "data directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	access := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refresh := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	reset := fs.Int("x", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")
	timeout := fs.Int("o", int(config.SessionTimeout.Minutes()), "session timeout (in minutes)")

	fs.IntVar(&config.EventCap, "n", config.EventCap, "event log cap")
	fs.StringVar(&config.EventCapScope, "k", config.EventCapScope, "event cap scope")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// Minute flags only override what was given explicitly, so a "90s" from
	// the config file is not truncated.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*access) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refresh) * time.Minute
		case "x":
			config.ResetTokenValidityDuration = time.Duration(*reset) * time.Minute
		case "o":
			config.SessionTimeout = time.Duration(*timeout) * time.Minute
		}
	})
	return nil
}
