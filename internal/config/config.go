package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Image URL policies for PATCH bodies.
const (
	ImageURLPolicyWarn   = "warn"
	ImageURLPolicyStrict = "strict"
)

// Storage drivers.
const (
	StorageSupabase = "supabase"
	StorageMinIO    = "minio"
	StorageMemory   = "memory" // local development only
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string

	SupabaseURL       string // e.g. https://abcd.supabase.co; storage REST base and public URL host
	SupabaseSecretKey string // service_role key, not the anon key
	SupabaseJWTSecret string // HS256 secret the identity provider signs access tokens with

	StorageDriver    string
	StorageBucket    string
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOUseSSL      bool
	PublicStorageURL string // public base for MinIO-served objects

	ImageURLPolicy string
	ImagelessGrace time.Duration

	AdminEmails         []string
	SessionCookieName   string
	FrontendURLEndsWith string
	HealthAdminKey      string

	LogLevel  string
	LogFormat string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("STORAGE_DRIVER", StorageSupabase)
	viper.SetDefault("STORAGE_BUCKET", "car-images")
	viper.SetDefault("IMAGE_URL_POLICY", ImageURLPolicyWarn)
	viper.SetDefault("IMAGELESS_GRACE", "1h")
	viper.SetDefault("SESSION_COOKIE_NAME", "sb-access-token")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	return &Config{
		Env:         viper.GetString("APP_ENV"),
		Port:        viper.GetString("PORT"),
		DatabaseURL: viper.GetString("DATABASE_URL"),
		RedisURL:    viper.GetString("REDIS_URL"),

		SupabaseURL:       strings.TrimRight(viper.GetString("SUPABASE_URL"), "/"),
		SupabaseSecretKey: viper.GetString("SUPABASE_SECRET_KEY"),
		SupabaseJWTSecret: viper.GetString("SUPABASE_JWT_SECRET"),

		StorageDriver:    strings.ToLower(viper.GetString("STORAGE_DRIVER")),
		StorageBucket:    viper.GetString("STORAGE_BUCKET"),
		MinIOEndpoint:    viper.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey:   viper.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey:   viper.GetString("MINIO_SECRET_KEY"),
		MinIOUseSSL:      viper.GetBool("MINIO_USE_SSL"),
		PublicStorageURL: strings.TrimRight(viper.GetString("PUBLIC_STORAGE_URL"), "/"),

		ImageURLPolicy: imageURLPolicy(viper.GetString("IMAGE_URL_POLICY")),
		ImagelessGrace: viper.GetDuration("IMAGELESS_GRACE"),

		AdminEmails:         splitList(viper.GetString("ADMIN_EMAILS")),
		SessionCookieName:   viper.GetString("SESSION_COOKIE_NAME"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),

		LogLevel:  viper.GetString("LOG_LEVEL"),
		LogFormat: viper.GetString("LOG_FORMAT"),
	}, nil
}

// IsProduction reports APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func imageURLPolicy(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), ImageURLPolicyStrict) {
		return ImageURLPolicyStrict
	}
	return ImageURLPolicyWarn
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
