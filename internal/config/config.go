package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Documents  DocumentConfig
	Signature  SignatureConfig
	Storage    StorageConfig
	Validation ValidationConfig
	Notify     NotifyConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port           int
	Environment    string
	SessionSecret  string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	DSN         string
	SeedPresets bool
}

type DocumentConfig struct {
	Locale       string
	Currency     string
	Timezone     string
	AuditDeletes bool
}

type SignatureConfig struct {
	IPLookupURL     string
	IPLookupTimeout time.Duration
}

// StorageConfig is optional: an empty Bucket keeps signature images inline in
// the database and disables snapshot archiving.
type StorageConfig struct {
	Bucket        string
	Region        string
	EndpointURL   string
	EncryptionKey []byte
}

func (s StorageConfig) Enabled() bool { return s.Bucket != "" }

type ValidationConfig struct {
	RedisURL string
	CacheTTL time.Duration
}

type NotifyConfig struct {
	NATSURL string
	Subject string
}

type TelemetryConfig struct {
	Exporter    string
	ServiceName string
}

// Load reads the configuration from the environment. Callers are expected to
// have loaded any .env file beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			Environment:    getEnv("APP_ENV", "development"),
			SessionSecret:  os.Getenv("SESSION_SECRET"),
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    time.Minute,
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DB_STRING"),
		},
		Documents: DocumentConfig{
			Locale:   getEnv("DOC_LOCALE", "pt-BR"),
			Currency: getEnv("DOC_CURRENCY", "BRL"),
			Timezone: getEnv("DOC_TIMEZONE", "America/Sao_Paulo"),
		},
		Signature: SignatureConfig{
			IPLookupURL: os.Getenv("IP_LOOKUP_URL"),
		},
		Storage: StorageConfig{
			Bucket:      os.Getenv("AWS_S3_BUCKET"),
			Region:      getEnv("AWS_REGION", "us-east-1"),
			EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
		},
		Validation: ValidationConfig{
			RedisURL: os.Getenv("REDIS_URL"),
		},
		Notify: NotifyConfig{
			NATSURL: os.Getenv("NATS_URL"),
			Subject: getEnv("NOTIFY_SUBJECT", "docsign.document.sent"),
		},
		Telemetry: TelemetryConfig{
			Exporter:    strings.ToLower(os.Getenv("OTEL_EXPORTER")),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "docsign"),
		},
	}

	var err error
	if v := os.Getenv("PORT"); v != "" {
		if cfg.Server.Port, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
	}
	if cfg.Signature.IPLookupTimeout, err = getDuration("IP_LOOKUP_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Validation.CacheTTL, err = getDuration("VALIDATION_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Documents.AuditDeletes, err = getBool("AUDIT_DOCUMENT_DELETES", false); err != nil {
		return nil, err
	}
	if cfg.Database.SeedPresets, err = getBool("SEED_PRESETS", true); err != nil {
		return nil, err
	}

	if keyHex := os.Getenv("DOCUMENT_ENCRYPTION_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key format: %w", err)
		}
		cfg.Storage.EncryptionKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_STRING environment variable not set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET environment variable not set")
	}
	if c.Storage.Enabled() && len(c.Storage.EncryptionKey) != 32 {
		return fmt.Errorf("DOCUMENT_ENCRYPTION_KEY must be 32 bytes (64 hex characters) when AWS_S3_BUCKET is set")
	}
	if c.Signature.IPLookupTimeout <= 0 {
		return fmt.Errorf("IP_LOOKUP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production") || strings.EqualFold(c.Server.Environment, "prod")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
