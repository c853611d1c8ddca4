package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	CatalogFile       string        // path to the fabric catalog yaml
	ReloadInterval    time.Duration // interval to reload the catalog (default: 5m)
	SatelliteTimeout  time.Duration // timeout for each satellite API call (default: 10s)
	ReconcileInterval time.Duration // interval between pending allocation sweeps (default: 1m)
	PendingGrace      time.Duration // age after which a pending allocation is abandoned (default: 2m)
	LockTTL           time.Duration // lifetime of an element pair lock (default: 30s)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict admin endpoints to these networks (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("FOGROUTE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("FOGROUTE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("FOGROUTE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("FOGROUTE_PRETTY_LOG", false),

		// Routing
		CatalogFile:       requireEnv("FOGROUTE_CATALOG_FILE"),
		ReloadInterval:    mustDuration("FOGROUTE_RELOAD_INTERVAL", 5*time.Minute),
		SatelliteTimeout:  mustDuration("FOGROUTE_SATELLITE_TIMEOUT", 10*time.Second),
		ReconcileInterval: mustDuration("FOGROUTE_RECONCILE_INTERVAL", time.Minute),
		PendingGrace:      mustDuration("FOGROUTE_PENDING_GRACE", 2*time.Minute),
		LockTTL:           mustDuration("FOGROUTE_LOCK_TTL", 30*time.Second),

		// Redis settings
		RedisAddr:             requireEnv("FOGROUTE_REDIS_ADDR"),
		RedisUser:             getenv("FOGROUTE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("FOGROUTE_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("FOGROUTE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("FOGROUTE_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("FOGROUTE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("FOGROUTE_TRUST_PROXY", false),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: FOGROUTE_REDIS_PASSWORD is required when FOGROUTE_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
