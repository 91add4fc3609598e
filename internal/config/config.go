package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string `env:"DB_HOST" validate:"required"`
	Port               string `env:"DB_PORT" validate:"required"`
	User               string `env:"DB_USER" validate:"required"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME" validate:"required"`
	SSLMode            string `env:"DB_SSLMODE"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC"`
}

// StorageConfig selects and configures the blob store holding uploaded PDFs and rendered audio.
type StorageConfig struct {
	Driver          string `env:"STORAGE_DRIVER" validate:"oneof=minio gcs"`
	Bucket          string `env:"STORAGE_BUCKET" validate:"required"`
	SignedURLTTLSec int    `env:"STORAGE_SIGNED_URL_TTL_SEC" validate:"gt=0"`

	Endpoint  string `env:"MINIO_ENDPOINT" validate:"required_if=Driver minio"`
	AccessKey string `env:"MINIO_ACCESS_KEY" validate:"required_if=Driver minio"`
	SecretKey string `env:"MINIO_SECRET_KEY" validate:"required_if=Driver minio"`
	UseSSL    bool   `env:"MINIO_USE_SSL"`

	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// SignedURLTTL is the default lifetime of presigned download URLs.
func (s StorageConfig) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLSec) * time.Second
}

// AnalysisConfig configures the text-analysis provider.
type AnalysisConfig struct {
	Provider      string `env:"ANALYSIS_PROVIDER" validate:"oneof=azure-openai vertex"`
	MaxInputChars int    `env:"ANALYSIS_MAX_INPUT_CHARS" validate:"gt=0"`

	AzureAPIKey     string `env:"AZURE_OPENAI_API_KEY" validate:"required_if=Provider azure-openai"`
	AzureEndpoint   string `env:"AZURE_OPENAI_ENDPOINT" validate:"required_if=Provider azure-openai"`
	AzureDeployment string `env:"AZURE_OPENAI_DEPLOYMENT_NAME" validate:"required_if=Provider azure-openai"`
	AzureAPIVersion string `env:"AZURE_OPENAI_API_VERSION"`

	VertexProject  string `env:"VERTEX_PROJECT_ID" validate:"required_if=Provider vertex"`
	VertexLocation string `env:"VERTEX_LOCATION"`
	VertexModel    string `env:"VERTEX_MODEL"`
}

// SpeechConfig configures the speech-synthesis provider.
type SpeechConfig struct {
	Key        string `env:"AZURE_SPEECH_KEY" validate:"required"`
	Region     string `env:"AZURE_SPEECH_REGION" validate:"required"`
	Endpoint   string `env:"AZURE_SPEECH_ENDPOINT"`
	TimeoutSec int    `env:"AZURE_SPEECH_TIMEOUT_SEC" validate:"gt=0"`
}

// Timeout returns the per-call timeout for the speech provider.
func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// IdentityConfig configures bearer token verification against the identity provider.
type IdentityConfig struct {
	TenantID       string `env:"AZURE_AD_TENANT_ID" validate:"required"`
	ClientID       string `env:"AZURE_AD_CLIENT_ID" validate:"required"`
	Audience       string `env:"AZURE_AD_AUDIENCE" validate:"required"`
	Authority      string `env:"AZURE_AD_AUTHORITY" validate:"required,url"`
	JWKSURL        string `env:"AZURE_AD_JWKS_URL"`
	JWKSRefreshSec int    `env:"AZURE_AD_JWKS_REFRESH_SEC"`
}

// Issuer is the expected iss claim for the configured tenant.
func (i IdentityConfig) Issuer() string {
	return fmt.Sprintf("%s/%s/v2.0", strings.TrimRight(i.Authority, "/"), i.TenantID)
}

// KeysURL is where the tenant signing keys are published.
func (i IdentityConfig) KeysURL() string {
	if i.JWKSURL != "" {
		return i.JWKSURL
	}
	return fmt.Sprintf("%s/%s/discovery/v2.0/keys", strings.TrimRight(i.Authority, "/"), i.TenantID)
}

// LogConfig configures the zerolog root logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT" validate:"oneof=json console"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables once at startup and not mutated afterwards.
type AppConfig struct {
	AppHost  string `env:"APP_HOST"`
	Port     string `env:"PORT" validate:"required"`
	Env      string `env:"APP_ENV"`
	Timezone string `env:"APP_TIMEZONE"`

	Database DatabaseConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	Speech   SpeechConfig
	Identity IdentityConfig
	Log      LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence; call Validate before use.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "production"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Driver:             getEnv("STORAGE_DRIVER", "minio"),
			Bucket:             getEnv("STORAGE_BUCKET", "pdf-files"),
			SignedURLTTLSec:    getEnvInt("STORAGE_SIGNED_URL_TTL_SEC", 3600),
			Endpoint:           getEnv("MINIO_ENDPOINT", ""),
			AccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:          getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:             getEnvBool("MINIO_USE_SSL", false),
			GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Analysis: AnalysisConfig{
			Provider:        getEnv("ANALYSIS_PROVIDER", "azure-openai"),
			MaxInputChars:   getEnvInt("ANALYSIS_MAX_INPUT_CHARS", 12000),
			AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", ""),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
			VertexProject:   getEnv("VERTEX_PROJECT_ID", ""),
			VertexLocation:  getEnv("VERTEX_LOCATION", "us-central1"),
			VertexModel:     getEnv("VERTEX_MODEL", "gemini-1.5-pro"),
		},
		Speech: SpeechConfig{
			Key:        getEnv("AZURE_SPEECH_KEY", ""),
			Region:     getEnv("AZURE_SPEECH_REGION", ""),
			Endpoint:   getEnv("AZURE_SPEECH_ENDPOINT", ""),
			TimeoutSec: getEnvInt("AZURE_SPEECH_TIMEOUT_SEC", 30),
		},
		Identity: IdentityConfig{
			TenantID:       getEnv("AZURE_AD_TENANT_ID", ""),
			ClientID:       getEnv("AZURE_AD_CLIENT_ID", ""),
			Audience:       getEnv("AZURE_AD_AUDIENCE", ""),
			Authority:      getEnv("AZURE_AD_AUTHORITY", "https://login.microsoftonline.com"),
			JWKSURL:        getEnv("AZURE_AD_JWKS_URL", ""),
			JWKSRefreshSec: getEnvInt("AZURE_AD_JWKS_REFRESH_SEC", 3600),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks required settings and reports every offending variable by its env name.
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}

	missing := make([]string, 0, len(verrs))
	invalid := make([]string, 0)
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, fe.Field())
		default:
			invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	sort.Strings(missing)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("config: %s", strings.Join(parts, "; "))
}

// IsProduction reports whether error details must be withheld from responses.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "" || strings.EqualFold(c.Env, "production")
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
