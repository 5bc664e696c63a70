package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	MongoDB       MongoDBConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	MinIO         MinIOConfig
	Keycloak      KeycloakConfig
	Admin         AdminConfig
	JWT           JWTConfig
	APISpecs      APISpecConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
	Remote        RemoteConfig
	LogLevel      string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	SiteURL      string
	AllowedHosts []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects the document/account backend: "memory" or "mongo".
type StorageConfig struct {
	Backend string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// DatabaseConfig is the relational store for catalogi, besluiten and autorisaties.
type DatabaseConfig struct {
	Driver string // postgres | sqlite
	DSN    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

func (k KeycloakConfig) IssuerURL() string {
	if k.URL == "" || k.Realm == "" {
		return ""
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type AdminConfig struct {
	Group string
}

type JWTConfig struct {
	// Leeway allowed on iat/exp checks of incoming ZGW tokens.
	Leeway time.Duration
	// TTL of tokens generated for outgoing calls; zero means no exp claim.
	TTL time.Duration
}

// APISpecConfig holds the OAS locations remote resources are validated against.
type APISpecConfig struct {
	DRC string
	BRC string
	ZTC string
	ZRC string
}

type NotificationsConfig struct {
	Disabled       bool
	Backend        string // http | kafka
	NRCURL         string
	ClientID       string
	Secret         string
	KafkaBrokers   []string
	KafkaTopic     string
	ResendSchedule string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	Window  time.Duration
}

type RemoteConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Services []ServiceCredential
}

// ServiceCredential is the client id and secret used for calls to an API root.
type ServiceCredential struct {
	APIRoot  string
	ClientID string
	Secret   string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("SITE_URL", "http://localhost:8000")
	viper.SetDefault("STORAGE_BACKEND", "memory")
	viper.SetDefault("MONGODB_DATABASE", "openzaak")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "file:openzaak?mode=memory&cache=shared")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("MINIO_BUCKET", "documenten")
	viper.SetDefault("ADMIN_GROUP", "openzaak-admins")
	viper.SetDefault("JWT_LEEWAY", 5)
	viper.SetDefault("JWT_TTL", 0)
	viper.SetDefault("DRC_API_SPEC", "https://raw.githubusercontent.com/vng-Realisatie/documenten-api/1.0.0/src/openapi.yaml")
	viper.SetDefault("BRC_API_SPEC", "https://raw.githubusercontent.com/vng-Realisatie/besluiten-api/1.0.0/src/openapi.yaml")
	viper.SetDefault("ZTC_API_SPEC", "https://raw.githubusercontent.com/vng-Realisatie/catalogi-api/1.0.0/src/openapi.yaml")
	viper.SetDefault("ZRC_API_SPEC", "https://raw.githubusercontent.com/vng-Realisatie/zaken-api/1.0.0/src/openapi.yaml")
	viper.SetDefault("NOTIFICATIONS_BACKEND", "http")
	viper.SetDefault("NOTIFICATIONS_KAFKA_TOPIC", "openzaak.notificaties")
	viper.SetDefault("NOTIFICATIONS_RESEND_SCHEDULE", "@every 10m")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 50)
	viper.SetDefault("RATE_LIMIT_BURST", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", 1)
	viper.SetDefault("REMOTE_TIMEOUT", 10)
	viper.SetDefault("REMOTE_CACHE_TTL", 300)
	viper.SetDefault("LOG_LEVEL", "info")

	services, err := parseServices(viper.GetString("REMOTE_SERVICES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			SiteURL:      strings.TrimRight(viper.GetString("SITE_URL"), "/"),
			AllowedHosts: splitList(viper.GetString("ALLOWED_HOSTS")),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{Backend: strings.ToLower(viper.GetString("STORAGE_BACKEND"))},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(viper.GetString("DB_DRIVER")),
			DSN:    viper.GetString("DB_DSN"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Keycloak: KeycloakConfig{
			URL:          viper.GetString("KEYCLOAK_URL"),
			Realm:        viper.GetString("KEYCLOAK_REALM"),
			ClientID:     viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: viper.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		Admin: AdminConfig{Group: viper.GetString("ADMIN_GROUP")},
		JWT: JWTConfig{
			Leeway: time.Duration(viper.GetInt("JWT_LEEWAY")) * time.Second,
			TTL:    time.Duration(viper.GetInt("JWT_TTL")) * time.Second,
		},
		APISpecs: APISpecConfig{
			DRC: viper.GetString("DRC_API_SPEC"),
			BRC: viper.GetString("BRC_API_SPEC"),
			ZTC: viper.GetString("ZTC_API_SPEC"),
			ZRC: viper.GetString("ZRC_API_SPEC"),
		},
		Notifications: NotificationsConfig{
			Disabled:       viper.GetBool("NOTIFICATIONS_DISABLED"),
			Backend:        strings.ToLower(viper.GetString("NOTIFICATIONS_BACKEND")),
			NRCURL:         viper.GetString("NOTIFICATIONS_NRC_URL"),
			ClientID:       viper.GetString("NOTIFICATIONS_CLIENT_ID"),
			Secret:         os.Getenv("NOTIFICATIONS_SECRET"),
			KafkaBrokers:   splitList(viper.GetString("NOTIFICATIONS_KAFKA_BROKERS")),
			KafkaTopic:     viper.GetString("NOTIFICATIONS_KAFKA_TOPIC"),
			ResendSchedule: viper.GetString("NOTIFICATIONS_RESEND_SCHEDULE"),
		},
		RateLimit: RateLimitConfig{
			Enabled: viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   viper.GetInt("RATE_LIMIT_BURST"),
			Window:  time.Duration(viper.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
		Remote: RemoteConfig{
			Timeout:  time.Duration(viper.GetInt("REMOTE_TIMEOUT")) * time.Second,
			CacheTTL: time.Duration(viper.GetInt("REMOTE_CACHE_TTL")) * time.Second,
			Services: services,
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.Storage.Backend == "mongo" && cfg.MongoDB.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required when STORAGE_BACKEND=mongo")
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Notifications.Backend == "kafka" && len(cfg.Notifications.KafkaBrokers) == 0 && !cfg.Notifications.Disabled {
		return nil, fmt.Errorf("NOTIFICATIONS_KAFKA_BROKERS is required for the kafka backend")
	}
	if !cfg.Notifications.Disabled && cfg.Notifications.Backend == "http" && cfg.Notifications.NRCURL == "" {
		logger.Warnf("NOTIFICATIONS_NRC_URL is not set; notifications will be stored as failed")
	}

	return cfg, nil
}

// parseServices reads "apiRoot|clientID|secret" entries separated by ";".
func parseServices(raw string) ([]ServiceCredential, error) {
	var out []ServiceCredential
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid REMOTE_SERVICES entry %q", entry)
		}
		out = append(out, ServiceCredential{APIRoot: parts[0], ClientID: parts[1], Secret: parts[2]})
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
