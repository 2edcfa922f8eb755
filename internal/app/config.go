package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/galaxychat-backend/internal/catalog"
	"github.com/yungbote/galaxychat-backend/internal/platform/envutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	ModelBackendGateway = "gateway"
	ModelBackendMock    = "mock"

	MemoryBackendMem0   = "mem0"
	MemoryBackendDynamo = "dynamodb"
	MemoryBackendNone   = "none"
)

// Config is loaded once at startup. Values come from the optional CONFIG_PATH YAML
// file; environment variables take precedence over the file.
type Config struct {
	ServiceName     string        `yaml:"service_name"`
	Environment     string        `yaml:"environment"`
	Version         string        `yaml:"version"`
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	DBDriver   string `yaml:"db_driver"`
	SQLitePath string `yaml:"sqlite_path"`

	Auth struct {
		JWKSURL   string `yaml:"jwks_url"`
		Issuer    string `yaml:"issuer"`
		Audience  string `yaml:"audience"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Gateway struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"gateway"`

	ModelBackend string        `yaml:"model_backend"`
	TitleModel   string        `yaml:"title_model"`
	TitleTimeout time.Duration `yaml:"title_timeout"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
	HistoryLimit int           `yaml:"history_limit"`

	Memory struct {
		Backend        string        `yaml:"backend"`
		Timeout        time.Duration `yaml:"timeout"`
		Mem0APIKey     string        `yaml:"mem0_api_key"`
		Mem0BaseURL    string        `yaml:"mem0_base_url"`
		DynamoEndpoint string        `yaml:"dynamodb_endpoint"`
		DynamoRegion   string        `yaml:"dynamodb_region"`
		DynamoTable    string        `yaml:"dynamodb_table"`
	} `yaml:"memory"`

	Catalog struct {
		URL       string        `yaml:"url"`
		TTL       time.Duration `yaml:"ttl"`
		RedisAddr string        `yaml:"redis_addr"`
	} `yaml:"catalog"`

	Media struct {
		Bucket        string `yaml:"bucket"`
		CDNDomain     string `yaml:"cdn_domain"`
		PublicBaseURL string `yaml:"public_base_url"`
		StorageMode   string `yaml:"storage_mode"`
		EmulatorHost  string `yaml:"emulator_host"`
		// Credentials is inline service-account JSON or a key file path.
		Credentials string `yaml:"credentials"`
	} `yaml:"media"`

	ChatRateLimitRPS   float64  `yaml:"chat_rate_limit_rps"`
	ChatRateLimitBurst int      `yaml:"chat_rate_limit_burst"`
	CORSAllowOrigins   []string `yaml:"cors_allow_origins"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	Otel struct {
		Enabled     bool    `yaml:"enabled"`
		Endpoint    string  `yaml:"endpoint"`
		Headers     string  `yaml:"headers"`
		Insecure    bool    `yaml:"insecure"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"otel"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.ServiceName = "galaxychat"
	cfg.Environment = "development"
	cfg.HTTPAddr = ":8080"
	cfg.ShutdownTimeout = 15 * time.Second
	cfg.DBDriver = "postgres"
	cfg.SQLitePath = "galaxychat.db"
	cfg.Gateway.Timeout = 30 * time.Second
	cfg.Gateway.MaxRetries = 2
	cfg.ModelBackend = ModelBackendGateway
	cfg.TitleTimeout = 5 * time.Second
	cfg.TurnTimeout = 30 * time.Second
	cfg.HistoryLimit = 100
	cfg.Memory.Backend = MemoryBackendMem0
	cfg.Memory.Timeout = 2 * time.Second
	cfg.Memory.DynamoRegion = "us-east-1"
	cfg.Memory.DynamoTable = "ChatMemories"
	cfg.Catalog.URL = catalog.DefaultURL
	cfg.Catalog.TTL = 24 * time.Hour
	cfg.ChatRateLimitRPS = 1
	cfg.ChatRateLimitBurst = 5
	cfg.MetricsEnabled = true
	cfg.Otel.SampleRatio = 0.1
	return cfg
}

// LoadConfig reads CONFIG_PATH (if set) and then the environment.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(log, &cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(log *logger.Logger, cfg *Config) {
	cfg.ServiceName = envutil.String("SERVICE_NAME", cfg.ServiceName, log)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment, log)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version, log)
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr, log)
	cfg.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, log)

	cfg.DBDriver = envutil.String("DB_DRIVER", cfg.DBDriver, log)
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath, log)

	cfg.Auth.JWKSURL = envutil.String("AUTH_JWKS_URL", cfg.Auth.JWKSURL, log)
	cfg.Auth.Issuer = envutil.String("AUTH_ISSUER", cfg.Auth.Issuer, log)
	cfg.Auth.Audience = envutil.String("AUTH_AUDIENCE", cfg.Auth.Audience, log)
	cfg.Auth.JWTSecret = envutil.String("AUTH_JWT_SECRET", cfg.Auth.JWTSecret, log)

	cfg.Gateway.BaseURL = envutil.String("AI_GATEWAY_BASE_URL", cfg.Gateway.BaseURL, log)
	cfg.Gateway.APIKey = envutil.String("AI_GATEWAY_API_KEY", cfg.Gateway.APIKey, log)
	cfg.Gateway.Timeout = time.Duration(envutil.Int("AI_GATEWAY_TIMEOUT_SECONDS", int(cfg.Gateway.Timeout/time.Second), log)) * time.Second
	cfg.Gateway.MaxRetries = envutil.Int("AI_GATEWAY_MAX_RETRIES", cfg.Gateway.MaxRetries, log)

	cfg.ModelBackend = strings.ToLower(envutil.String("MODEL_BACKEND", cfg.ModelBackend, log))
	cfg.TitleModel = envutil.String("TITLE_MODEL", cfg.TitleModel, log)
	cfg.TitleTimeout = envutil.Duration("TITLE_TIMEOUT", cfg.TitleTimeout, log)
	cfg.TurnTimeout = envutil.Duration("TURN_TIMEOUT", cfg.TurnTimeout, log)
	cfg.HistoryLimit = envutil.Int("HISTORY_LIMIT", cfg.HistoryLimit, log)

	cfg.Memory.Backend = strings.ToLower(envutil.String("MEMORY_BACKEND", cfg.Memory.Backend, log))
	cfg.Memory.Timeout = envutil.Duration("MEMORY_TIMEOUT", cfg.Memory.Timeout, log)
	cfg.Memory.Mem0APIKey = envutil.String("MEM0_API_KEY", cfg.Memory.Mem0APIKey, log)
	cfg.Memory.Mem0BaseURL = envutil.String("MEM0_BASE_URL", cfg.Memory.Mem0BaseURL, log)
	cfg.Memory.DynamoEndpoint = envutil.String("DYNAMODB_ENDPOINT", cfg.Memory.DynamoEndpoint, log)
	cfg.Memory.DynamoRegion = envutil.String("DYNAMODB_REGION", cfg.Memory.DynamoRegion, log)
	cfg.Memory.DynamoTable = envutil.String("DYNAMODB_TABLE", cfg.Memory.DynamoTable, log)

	cfg.Catalog.URL = envutil.String("CATALOG_URL", cfg.Catalog.URL, log)
	cfg.Catalog.TTL = envutil.Duration("CATALOG_TTL", cfg.Catalog.TTL, log)
	cfg.Catalog.RedisAddr = envutil.String("REDIS_ADDR", cfg.Catalog.RedisAddr, log)

	cfg.Media.Bucket = envutil.String("GCS_MEDIA_BUCKET", cfg.Media.Bucket, log)
	cfg.Media.CDNDomain = envutil.String("MEDIA_CDN_DOMAIN", cfg.Media.CDNDomain, log)
	cfg.Media.PublicBaseURL = envutil.String("MEDIA_PUBLIC_BASE_URL", cfg.Media.PublicBaseURL, log)
	cfg.Media.StorageMode = envutil.String("MEDIA_STORAGE_MODE", cfg.Media.StorageMode, log)
	cfg.Media.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Media.EmulatorHost, log)
	cfg.Media.Credentials = envutil.String("GCS_CREDENTIALS", cfg.Media.Credentials, log)

	cfg.ChatRateLimitRPS = envutil.Float("CHAT_RATE_LIMIT_RPS", cfg.ChatRateLimitRPS, log)
	cfg.ChatRateLimitBurst = envutil.Int("CHAT_RATE_LIMIT_BURST", cfg.ChatRateLimitBurst, log)
	cfg.CORSAllowOrigins = envutil.List("CORS_ALLOW_ORIGINS", cfg.CORSAllowOrigins, log)

	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled, log)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled, log)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint, log)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers, log)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure, log)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio, log)
}

func (c Config) validate() error {
	switch c.ModelBackend {
	case ModelBackendGateway, ModelBackendMock:
	default:
		return fmt.Errorf("invalid MODEL_BACKEND %q (allowed: %q, %q)", c.ModelBackend, ModelBackendGateway, ModelBackendMock)
	}
	switch c.Memory.Backend {
	case MemoryBackendMem0, MemoryBackendDynamo, MemoryBackendNone:
	default:
		return fmt.Errorf("invalid MEMORY_BACKEND %q (allowed: %q, %q, %q)", c.Memory.Backend, MemoryBackendMem0, MemoryBackendDynamo, MemoryBackendNone)
	}
	if strings.TrimSpace(c.Auth.JWKSURL) == "" && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWKS_URL or AUTH_JWT_SECRET is required")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	return nil
}
