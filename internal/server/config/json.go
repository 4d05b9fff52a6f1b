package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/flagx"
	"github.com/dmitrijs2005/userkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Pointer fields
// distinguish "absent" from zero so a partial file only overrides what it
// names. Durations accept "24h" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	StoreDriver                  *string         `json:"store_driver"`
	DataDir                      *string         `json:"data_dir"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   *timex.Duration `json:"reset_token_validity_duration"`
	SessionTimeout               *timex.Duration `json:"session_timeout"`
	SessionSweepInterval         *timex.Duration `json:"session_sweep_interval"`
	InactiveSessionRetention     *timex.Duration `json:"inactive_session_retention"`
	EventCap                     *int            `json:"event_cap"`
	EventCapScope                *string         `json:"event_cap_scope"`
	LogLevel                     *string         `json:"log_level"`
	ExportToS3                   *bool           `json:"export_to_s3"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c or -config in args into config.
// Without either flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StoreDriver, c.StoreDriver)
	setString(&config.DataDir, c.DataDir)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setDuration(&config.SessionTimeout, c.SessionTimeout)
	setDuration(&config.SessionSweepInterval, c.SessionSweepInterval)
	setDuration(&config.InactiveSessionRetention, c.InactiveSessionRetention)
	if c.EventCap != nil {
		config.EventCap = *c.EventCap
	}
	setString(&config.EventCapScope, c.EventCapScope)
	setString(&config.LogLevel, c.LogLevel)
	if c.ExportToS3 != nil {
		config.ExportToS3 = *c.ExportToS3
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
