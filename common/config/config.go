// Package config holds the connection settings shared by every binary.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig Postgres connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

// RedisConfig backs sessions, the directory store, pub/sub and streams.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig broker used by the alert worker.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN lib/pq URL form. User and password are escaped.
func (c *DatabaseConfig) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Redacted is GetDSN without the password, for logs.
func (c *DatabaseConfig) Redacted() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
}

// LoadFromEnv overrides fields from <prefix>_HOST, _PORT, _USER, _PASSWORD,
// _NAME, _SSLMODE, _MAX_CONNS, _MAX_IDLE, _CONN_MAX_LIFETIME. Unset or
// unparsable variables leave the field alone.
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	envString(&c.Host, prefix+"_HOST")
	envInt(&c.Port, prefix+"_PORT")
	envString(&c.User, prefix+"_USER")
	envString(&c.Password, prefix+"_PASSWORD")
	envString(&c.Database, prefix+"_NAME")
	envString(&c.SSLMode, prefix+"_SSLMODE")
	envInt(&c.MaxConns, prefix+"_MAX_CONNS")
	envInt(&c.MaxIdle, prefix+"_MAX_IDLE")
	if v, ok := os.LookupEnv(prefix + "_CONN_MAX_LIFETIME"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.ConnMaxLifetime = d
		}
	}
}

// LoadFromEnv overrides fields from <prefix>_ADDR, _PASSWORD, _DB.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	envString(&c.Addr, prefix+"_ADDR")
	envString(&c.Password, prefix+"_PASSWORD")
	envInt(&c.DB, prefix+"_DB")
}

// LoadFromEnv overrides fields from <prefix>_BROKER, _CLIENT_ID, _USERNAME,
// _PASSWORD, _QOS. QoS outside 0..2 is ignored.
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	envString(&c.Broker, prefix+"_BROKER")
	envString(&c.ClientID, prefix+"_CLIENT_ID")
	envString(&c.Username, prefix+"_USERNAME")
	envString(&c.Password, prefix+"_PASSWORD")
	qos := -1
	envInt(&qos, prefix+"_QOS")
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
