package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/filevault/internal/flagx"
	"github.com/dmitrijs2005/filevault/internal/timex"
)

// JsonConfig is the on-disk shape of a config file. Interval fields use
// timex.Duration so both "24h" and integer nanoseconds are accepted.
// Keys absent from the file keep the value the Config already had.
type JsonConfig struct {
	HTTPAddr       string `json:"http_addr"`
	HealthAddrGRPC string `json:"health_addr_grpc"`
	MetricsAddr    string `json:"metrics_addr"`

	MetadataBackend string `json:"metadata_backend"`
	DatabaseDSN     string `json:"database_dsn"`

	SessionBackend string         `json:"session_backend"`
	SessionTTL     timex.Duration `json:"session_ttl"`
	RedisAddr      string         `json:"redis_addr"`
	RedisPassword  string         `json:"redis_password"`
	RedisDB        int            `json:"redis_db"`
	BadgerPath     string         `json:"badger_path"`

	QueueBackend      string         `json:"queue_backend"`
	AMQPURL           string         `json:"amqp_url"`
	QueueMaxAttempts  int            `json:"queue_max_attempts"`
	QueueRetryMin     timex.Duration `json:"queue_retry_min"`
	QueueRetryMax     timex.Duration `json:"queue_retry_max"`
	WorkerConcurrency int            `json:"worker_concurrency"`

	BlobBackend    string `json:"blob_backend"`
	FolderPath     string `json:"folder_path"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	UserCacheSize int            `json:"user_cache_size"`
	UserCacheTTL  timex.Duration `json:"user_cache_ttl"`
	PageSize      int            `json:"page_size"`

	MaxUploadBytes int64 `json:"max_upload_bytes"`

	LogLevel string `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:          c.HTTPAddr,
		HealthAddrGRPC:    c.HealthAddrGRPC,
		MetricsAddr:       c.MetricsAddr,
		MetadataBackend:   c.MetadataBackend,
		DatabaseDSN:       c.DatabaseDSN,
		SessionBackend:    c.SessionBackend,
		SessionTTL:        timex.Duration{Duration: c.SessionTTL},
		RedisAddr:         c.RedisAddr,
		RedisPassword:     c.RedisPassword,
		RedisDB:           c.RedisDB,
		BadgerPath:        c.BadgerPath,
		QueueBackend:      c.QueueBackend,
		AMQPURL:           c.AMQPURL,
		QueueMaxAttempts:  c.QueueMaxAttempts,
		QueueRetryMin:     timex.Duration{Duration: c.QueueRetryMin},
		QueueRetryMax:     timex.Duration{Duration: c.QueueRetryMax},
		WorkerConcurrency: c.WorkerConcurrency,
		BlobBackend:       c.BlobBackend,
		FolderPath:        c.FolderPath,
		S3RootUser:        c.S3RootUser,
		S3RootPassword:    c.S3RootPassword,
		S3Bucket:          c.S3Bucket,
		S3Region:          c.S3Region,
		S3BaseEndpoint:    c.S3BaseEndpoint,
		UserCacheSize:     c.UserCacheSize,
		UserCacheTTL:      timex.Duration{Duration: c.UserCacheTTL},
		PageSize:          c.PageSize,
		MaxUploadBytes:    c.MaxUploadBytes,
		LogLevel:          c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.HealthAddrGRPC = j.HealthAddrGRPC
	c.MetricsAddr = j.MetricsAddr
	c.MetadataBackend = j.MetadataBackend
	c.DatabaseDSN = j.DatabaseDSN
	c.SessionBackend = j.SessionBackend
	c.SessionTTL = j.SessionTTL.Duration
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.BadgerPath = j.BadgerPath
	c.QueueBackend = j.QueueBackend
	c.AMQPURL = j.AMQPURL
	c.QueueMaxAttempts = j.QueueMaxAttempts
	c.QueueRetryMin = j.QueueRetryMin.Duration
	c.QueueRetryMax = j.QueueRetryMax.Duration
	c.WorkerConcurrency = j.WorkerConcurrency
	c.BlobBackend = j.BlobBackend
	c.FolderPath = j.FolderPath
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.UserCacheSize = j.UserCacheSize
	c.UserCacheTTL = j.UserCacheTTL.Duration
	c.PageSize = j.PageSize
	c.MaxUploadBytes = j.MaxUploadBytes
	c.LogLevel = j.LogLevel
}

// parseJson loads the file named by -c or -config in args and overlays its
// values on config. Without either flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigPath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", jsonConfigFile, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse %s: %w", jsonConfigFile, err)
	}

	c.apply(config)
	return nil
}
