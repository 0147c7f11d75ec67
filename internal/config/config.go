package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Auth backend selection values.
const (
	AuthBackendLocal = "local"
	AuthBackendOIDC  = "oidc"
)

// Model registry source selection values.
const (
	RegistrySourceDB   = "db"
	RegistrySourceFile = "file"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthBackend string

	// Local token signing.
	AuthJWTSecret      string
	AuthJWTAlgorithm   string
	AuthTokenTTLMinute int

	// External identity provider (JWKS).
	OIDCJWKSURL       string
	OIDCUsernameClaim string

	// Upstream completion provider.
	ProviderBaseURL string
	ProviderAPIKey  string

	// Model registry.
	RegistrySource  string
	ModelCatalogDir string

	// Optional ingress rate limiting.
	RedisAddr     string
	RedisPassword string
	IngressRate   float64
	IngressBurst  int

	// Admin account seeded at startup.
	SeedAdminUsername string
	SeedAdminPassword string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "freeway"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		AuthBackend: normalizeAuthBackend(getenv("AUTH_BACKEND", AuthBackendLocal)),

		AuthJWTSecret:      strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTAlgorithm:   getenv("AUTH_JWT_ALGORITHM", "HS256"),
		AuthTokenTTLMinute: int(getenvInt64("AUTH_TOKEN_TTL_MINUTES", 15)),

		OIDCJWKSURL:       strings.TrimSpace(getenv("OIDC_JWKS_URL", "")),
		OIDCUsernameClaim: getenv("OIDC_USERNAME_CLAIM", "preferred_username"),

		ProviderBaseURL: getenv("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
		ProviderAPIKey:  strings.TrimSpace(getenv("PROVIDER_API_KEY", "")),

		RegistrySource:  normalizeRegistrySource(getenv("MODEL_REGISTRY_SOURCE", RegistrySourceDB)),
		ModelCatalogDir: getenv("MODEL_CATALOG_DIR", "."),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		IngressRate:   getenvFloat("INGRESS_RATE_PER_SECOND", 50),
		IngressBurst:  int(getenvInt64("INGRESS_BURST", 100)),

		SeedAdminUsername: getenv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminPassword: getenv("SEED_ADMIN_PASSWORD", "admin"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "freeway"),
		DBUser:            getenv("DATABASE_USER", "freeway"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONNS", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONNS", 100)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_MINUTES", 5)),
	}

	return cfg
}

func normalizeAuthBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case AuthBackendOIDC, "keycloak":
		return AuthBackendOIDC
	default:
		return AuthBackendLocal
	}
}

func normalizeRegistrySource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RegistrySourceFile, "catalog":
		return RegistrySourceFile
	default:
		return RegistrySourceDB
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
