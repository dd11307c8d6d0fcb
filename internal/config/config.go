package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	commoncfg "india-blood-connect/common/config"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendPostgres  = "postgres"
	BackendDirectory = "directory"
	BackendHosted    = "hosted"
)

// Config shared by ibc-api, ibc-alerts and ibc-admin.
type Config struct {
	HTTP struct {
		Addr        string
		CORSOrigins []string
	}
	StoreBackend string
	Database     commoncfg.DatabaseConfig
	Redis        commoncfg.RedisConfig
	MQTT         struct {
		commoncfg.MQTTConfig
		Enabled bool
	}
	Hosted struct {
		URL     string
		APIKey  string
		Timeout time.Duration
		Retries int
	}
	OTP struct {
		Mode         string // "fixed" or "redis"
		FixedCode    string
		TTL          time.Duration
		ResendWindow time.Duration
		GatewayURL   string // empty: codes are logged
		GatewayKey   string
	}
	Session struct {
		TTL time.Duration // zero: sessions never expire
	}
	Matcher struct {
		PollInterval time.Duration
	}
	Alerts struct {
		TriggerMode   string // "polling" or "events"
		PollInterval  time.Duration
		EventStream   string
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int
		TopicPrefix   string
		CachePrefix   string
	}
	Seed bool
	Log  struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres))

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "blood_connect")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)
	cfg.Database.ConnMaxLifetime = parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ibc-alerts")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Hosted.URL = getEnv("HOSTED_URL", "")
	cfg.Hosted.APIKey = getEnv("HOSTED_API_KEY", "")
	cfg.Hosted.Timeout = parseDuration(getEnv("HOSTED_TIMEOUT", "10s"), 10*time.Second)
	cfg.Hosted.Retries = parseInt(getEnv("HOSTED_RETRIES", "2"), 2)

	cfg.OTP.Mode = strings.ToLower(getEnv("OTP_MODE", "fixed"))
	cfg.OTP.FixedCode = getEnv("OTP_FIXED_CODE", "1234")
	cfg.OTP.TTL = parseDuration(getEnv("OTP_TTL", "5m"), 5*time.Minute)
	cfg.OTP.ResendWindow = parseDuration(getEnv("OTP_RESEND_WINDOW", "30s"), 30*time.Second)
	cfg.OTP.GatewayURL = getEnv("OTP_GATEWAY_URL", "")
	cfg.OTP.GatewayKey = getEnv("OTP_GATEWAY_KEY", "")

	cfg.Session.TTL = parseDuration(getEnv("SESSION_TTL", "0"), 0)

	cfg.Matcher.PollInterval = parseDuration(getEnv("MATCH_POLL_INTERVAL", "2s"), 2*time.Second)

	cfg.Alerts.TriggerMode = getEnv("ALERT_TRIGGER_MODE", "polling")
	cfg.Alerts.PollInterval = parseDuration(getEnv("ALERT_POLL_INTERVAL", "2s"), 2*time.Second)
	cfg.Alerts.EventStream = getEnv("ALERT_EVENT_STREAM", "ibc:request-events")
	cfg.Alerts.ConsumerGroup = getEnv("ALERT_CONSUMER_GROUP", "ibc-alerts-group")
	cfg.Alerts.ConsumerName = getEnv("ALERT_CONSUMER_NAME", "ibc-alerts-1")
	cfg.Alerts.BatchSize = parseInt(getEnv("ALERT_BATCH_SIZE", "10"), 10)
	cfg.Alerts.TopicPrefix = getEnv("ALERT_TOPIC_PREFIX", "ibc/alerts/")
	cfg.Alerts.CachePrefix = getEnv("ALERT_CACHE_PREFIX", "ibc:alerts:")

	cfg.Seed = getEnv("SEED_ON_START", "true") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// prefixed overrides, e.g. IBC_DB_HOST
	cfg.Database.LoadFromEnv("IBC_DB")
	cfg.Redis.LoadFromEnv("IBC_REDIS")
	cfg.MQTT.LoadFromEnv("IBC_MQTT")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// parseDuration accepts Go durations ("2s") or a plain number of seconds.
func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
