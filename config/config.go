package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	// AllowedOrigins is a comma-separated list of browser origins; "*" allows any.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding headers are believed.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Delivery policy.
	PreferenceCacheTTL time.Duration `mapstructure:"PREFERENCE_CACHE_TTL"`
	SupportedChannels  string        `mapstructure:"SUPPORTED_CHANNELS"`
	// DefaultTimezone applies to quiet hours of users who never set a timezone.
	DefaultTimezone string `mapstructure:"DEFAULT_TIMEZONE"`

	// Push transport.
	VAPIDPublicKey          string        `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey         string        `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubject            string        `mapstructure:"VAPID_SUBJECT"`
	PushTTL                 time.Duration `mapstructure:"PUSH_TTL"`
	PushIcon                string        `mapstructure:"PUSH_ICON"`
	PushBadge               string        `mapstructure:"PUSH_BADGE"`
	FirebaseCredentialsFile string        `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Email transport.
	MailGatewayURL   string `mapstructure:"MAIL_GATEWAY_URL"`
	MailGatewayToken string `mapstructure:"MAIL_GATEWAY_TOKEN"`
	EmailConcurrency int    `mapstructure:"EMAIL_CONCURRENCY"`

	// Offline producer agent.
	OfflineQueuePath string        `mapstructure:"OFFLINE_QUEUE_PATH"`
	EngineBaseURL    string        `mapstructure:"ENGINE_BASE_URL"`
	EngineToken      string        `mapstructure:"ENGINE_TOKEN"`
	SyncInterval     time.Duration `mapstructure:"SYNC_INTERVAL"`
	QueueMaxAttempts int           `mapstructure:"QUEUE_MAX_ATTEMPTS"`
	QueueMaxAge      time.Duration `mapstructure:"QUEUE_MAX_AGE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("TRUSTED_PROXIES", "")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "beacon")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("PREFERENCE_CACHE_TTL", 5*time.Second)
	viper.SetDefault("SUPPORTED_CHANNELS", "in_app,push,email")
	viper.SetDefault("DEFAULT_TIMEZONE", "UTC")
	viper.SetDefault("VAPID_SUBJECT", "mailto:ops@example.com")
	viper.SetDefault("PUSH_TTL", 24*time.Hour)
	viper.SetDefault("PUSH_ICON", "/icons/icon-192.png")
	viper.SetDefault("PUSH_BADGE", "/icons/badge-72.png")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	viper.SetDefault("MAIL_GATEWAY_URL", "")
	viper.SetDefault("EMAIL_CONCURRENCY", 5)
	viper.SetDefault("OFFLINE_QUEUE_PATH", "beacon-queue.db")
	viper.SetDefault("ENGINE_BASE_URL", "http://localhost:8080")
	viper.SetDefault("SYNC_INTERVAL", time.Minute)
	viper.SetDefault("QUEUE_MAX_ATTEMPTS", 12)
	viper.SetDefault("QUEUE_MAX_AGE", 7*24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

func splitList(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Channels splits SUPPORTED_CHANNELS into trimmed, non-empty names.
func (c Config) Channels() []string {
	return splitList(c.SupportedChannels)
}

// Location loads DEFAULT_TIMEZONE, falling back to UTC when it is unset or unknown.
func (c Config) Location() *time.Location {
	if c.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		log.Printf("Unknown DEFAULT_TIMEZONE %q, using UTC", c.DefaultTimezone)
		return time.UTC
	}
	return loc
}

// Origins returns the allowed browser origins. Unset means any origin.
func (c Config) Origins() []string {
	if origins := splitList(c.AllowedOrigins); len(origins) > 0 {
		return origins
	}
	return []string{"*"}
}

// Proxies returns the trusted proxy list. Unset means no proxy is trusted.
func (c Config) Proxies() []string {
	return splitList(c.TrustedProxies)
}
