package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/edumate/internal/flagx"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// JsonConfig is the shape of the optional JSON config file. Durations use
// timex.Duration so both "10m" and integer nanoseconds are accepted.
// Keys that are absent or empty leave the current value in place.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	GRPCAddr             string         `json:"grpc_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	MongoURL             string         `json:"mongo_url"`
	MongoDatabase        string         `json:"mongo_database"`
	SessionKey           string         `json:"session_key"`
	VerificationKey      string         `json:"verification_key"`
	Issuer               string         `json:"issuer"`
	Audience             string         `json:"audience"`
	SessionTokenTTL      timex.Duration `json:"session_token_ttl"`
	VerificationTokenTTL timex.Duration `json:"verification_token_ttl"`
	PasskeyTTL           timex.Duration `json:"passkey_ttl"`
	SweepInterval        timex.Duration `json:"sweep_interval"`
	VerificationBaseURL  string         `json:"verification_base_url"`
	PostmarkServerToken  string         `json:"postmark_server_token"`
	PostmarkAccountToken string         `json:"postmark_account_token"`
	SenderEmail          string         `json:"sender_email"`
	SupportEmail         string         `json:"support_email"`
	MailDevDir           string         `json:"mail_dev_dir"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	S3PublicBaseURL      string         `json:"s3_public_base_url"`
	S3ForcePathStyle     *bool          `json:"s3_force_path_style"`
	UploadsDir           string         `json:"uploads_dir"`
	MaxAvatarSize        int64          `json:"max_avatar_size"`
	MaxAttachmentSize    int64          `json:"max_attachment_size"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
}

// parseJson loads the file named by -c / -config, if any, over config.
// It panics when the file cannot be read or is not valid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.MongoURL, c.MongoURL)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.SessionKey, c.SessionKey)
	setString(&config.VerificationKey, c.VerificationKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setDuration(&config.SessionTokenTTL, c.SessionTokenTTL)
	setDuration(&config.VerificationTokenTTL, c.VerificationTokenTTL)
	setDuration(&config.PasskeyTTL, c.PasskeyTTL)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setString(&config.VerificationBaseURL, c.VerificationBaseURL)
	setString(&config.PostmarkServerToken, c.PostmarkServerToken)
	setString(&config.PostmarkAccountToken, c.PostmarkAccountToken)
	setString(&config.SenderEmail, c.SenderEmail)
	setString(&config.SupportEmail, c.SupportEmail)
	setString(&config.MailDevDir, c.MailDevDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	if c.S3ForcePathStyle != nil {
		config.S3ForcePathStyle = *c.S3ForcePathStyle
	}
	setString(&config.UploadsDir, c.UploadsDir)
	if c.MaxAvatarSize > 0 {
		config.MaxAvatarSize = c.MaxAvatarSize
	}
	if c.MaxAttachmentSize > 0 {
		config.MaxAttachmentSize = c.MaxAttachmentSize
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
