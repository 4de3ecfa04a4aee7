package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role names the binary a Config is validated for. Each role checks only
// the sections it uses.
type Role string

const (
	RoleServer Role = "server"
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleCLI    Role = "cli"
)

// ValidationErrors collects "field: message" problems.
type ValidationErrors map[string][]string

// Add records msg against field.
func (ve ValidationErrors) Add(field, msg string) {
	ve[field] = append(ve[field], msg)
}

// Err returns nil when nothing was added.
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(ve[f], ", ")))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the sections required by role.
func (c *Config) Validate(role Role) error {
	ve := ValidationErrors{}

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}
	if _, err := c.UPN.Policy(); err != nil {
		ve.Add("upn.date_policy", err.Error())
	}
	if _, err := c.QR.SymbolSpec(); err != nil {
		ve.Add("qr", err.Error())
	}

	switch role {
	case RoleServer:
		c.validateServer(ve)
		c.validateExtraction(ve)
		c.validateBotcheck(ve)
		if c.Redis.Enabled && c.Redis.Addr == "" {
			ve.Add("redis.addr", "cannot be empty when redis is enabled")
		}
	case RoleAPI:
		if c.API.Address == "" {
			ve.Add("api.address", "cannot be empty")
		}
		if c.API.PresignTTL <= 0 {
			ve.Add("api.presign_ttl", "must be positive")
		}
		if c.Server.MaxFileBytes <= 0 {
			ve.Add("server.max_file_bytes", "must be positive")
		}
		if c.Server.RateLimit < 0 {
			ve.Add("server.rate_limit", "cannot be negative")
		}
		c.validateBotcheck(ve)
		c.validateBackends(ve)
	case RoleWorker:
		c.validateBackends(ve)
		c.validateExtraction(ve)
		if c.Worker.Concurrency <= 0 {
			ve.Add("worker.concurrency", "must be positive")
		}
		if c.Worker.MaxRetry < 0 {
			ve.Add("worker.max_retry", "cannot be negative")
		}
	case RoleCLI:
	default:
		ve.Add("role", fmt.Sprintf("unknown role %q", role))
	}

	return ve.Err()
}

func (c *Config) validateBotcheck(ve ValidationErrors) {
	if c.Botcheck.Enabled && c.Botcheck.SecretKey == "" {
		ve.Add("botcheck.secret_key", "cannot be empty when botcheck is enabled")
	}
}

func (c *Config) validateServer(ve ValidationErrors) {
	if c.Server.Address == "" {
		ve.Add("server.address", "cannot be empty")
	}
	if c.Server.MaxFileBytes <= 0 {
		ve.Add("server.max_file_bytes", "must be positive")
	}
	if c.Server.SignedURLTTL <= 0 {
		ve.Add("server.signed_url_ttl", "must be positive")
	}
	if c.Server.RateLimit <= 0 {
		ve.Add("server.rate_limit", "must be positive")
	}
	if c.Server.RateBurst <= 0 {
		ve.Add("server.rate_burst", "must be positive")
	}
	if c.Server.ResultCapacity <= 0 {
		ve.Add("server.result_capacity", "must be positive")
	}
	if c.Server.ProcessingPool <= 0 {
		ve.Add("server.processing_pool", "must be positive")
	}
}

func (c *Config) validateExtraction(ve ValidationErrors) {
	if c.OpenAI.APIKey == "" {
		ve.Add("openai.api_key", "cannot be empty")
	}
	if c.OpenAI.Model == "" {
		ve.Add("openai.model", "cannot be empty")
	}
}

func (c *Config) validateBackends(ve ValidationErrors) {
	if c.Database.URL == "" {
		ve.Add("database.url", "cannot be empty")
	}
	if c.Redis.Addr == "" {
		ve.Add("redis.addr", "cannot be empty")
	}
	if c.S3.Endpoint == "" {
		ve.Add("s3.endpoint", "cannot be empty")
	}
	if c.S3.RawBucket == "" || c.S3.QRBucket == "" {
		ve.Add("s3.buckets", "raw_bucket and qr_bucket are required")
	}
}
