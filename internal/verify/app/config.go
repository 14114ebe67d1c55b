package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	verifyhttp "github.com/aussiebroadwan/stepauth/internal/verify/http"
	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
)

// Messenger kinds.
const (
	MessengerBale = "bale"
	MessengerLog  = "log"
)

type Config struct {
	Issuer         string        // issuer claim of challenge and session tokens (default: stepauth)
	DatabaseFile   string        // path to the SQLite database (default: ./verifyd.db)
	PepperFile     string        // path to the password pepper, created if missing (default: ./pepper)
	SigningKeyFile string        // PEM Ed25519 key, created if missing; empty means ephemeral
	CodeTTL        time.Duration // code validity window (default: 2m)
	SessionTTL     time.Duration // session lifetime (default: 12h)
	MaxAttempts    int           // wrong codes accepted per challenge (default: 5)
	CookieSecure   bool          // set the Secure attribute on cookies (default: true outside dev)

	Messenger  string // bale or log (default: log in dev, bale otherwise)
	BaleToken  string // bot token, required for bale
	BaleAPIURL string // bot API base (default: https://tapi.bale.ai)

	Env                  string        // dev, staging, prod (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json, text (default: json)
	Port                 int           // HTTP port (default: 8080)
	ShutdownGracePeriod  time.Duration // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // cleanup interval (default: 1h)

	RateLimits verifyhttp.RateLimits
}

func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "dev")
	defaultMessenger := MessengerBale
	if env == "dev" {
		defaultMessenger = MessengerLog
	}

	return Config{
		Issuer:         getEnvOrDefault("VERIFYD_ISSUER", service.DefaultIssuer),
		DatabaseFile:   getEnvOrDefault("VERIFYD_DATABASE_FILE", "verifyd.db"),
		PepperFile:     getEnvOrDefault("VERIFYD_PEPPER_FILE", "pepper"),
		SigningKeyFile: os.Getenv("VERIFYD_SIGNING_KEY_FILE"),
		CodeTTL:        getEnvDurationOrDefault("VERIFYD_CODE_TTL", service.DefaultCodeTTL),
		SessionTTL:     getEnvDurationOrDefault("VERIFYD_SESSION_TTL", service.DefaultSessionTTL),
		MaxAttempts:    getEnvIntOrDefault("VERIFYD_MAX_ATTEMPTS", service.DefaultMaxAttempts),
		CookieSecure:   getEnvBoolOrDefault("VERIFYD_COOKIE_SECURE", env != "dev"),

		Messenger:  strings.ToLower(getEnvOrDefault("MESSENGER", defaultMessenger)),
		BaleToken:  os.Getenv("BALE_BOT_TOKEN"),
		BaleAPIURL: getEnvOrDefault("BALE_API_URL", messenger.DefaultBaleAPIURL),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),

		RateLimits: verifyhttp.RateLimits{
			Strict:   httpx.RateLimitFromEnv("strict", httpx.StrictLimit),
			Moderate: httpx.RateLimitFromEnv("moderate", httpx.ModerateLimit),
			Public:   httpx.RateLimitFromEnv("public", httpx.PublicLimit),
		},
	}
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Messenger {
	case MessengerLog:
	case MessengerBale:
		if c.BaleToken == "" {
			return fmt.Errorf("BALE_BOT_TOKEN is required when MESSENGER=%s", MessengerBale)
		}
	default:
		return fmt.Errorf("unknown MESSENGER %q (want %s or %s)", c.Messenger, MessengerBale, MessengerLog)
	}
	if c.CodeTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("VERIFYD_CODE_TTL and VERIFYD_SESSION_TTL must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("VERIFYD_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "2m", "90s", "12h"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
