// Package config provides centralized default values for Kendr
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		// godotenv.Load never overrides variables already present in the environment.
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loaded configuration overrides from .env file")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvSecret(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		log.Printf("Config override: %s=**** (set)", key)
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	log.Printf("Config override: %s=%s", key, strings.Join(out, ","))
	return out
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSAllowedOrigins []string

	// Database
	DBPath                   string
	TursoDatabaseURL         string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Backend / auth
	BackendURL      string
	JWTSecret       string
	ServiceTokenTTL time.Duration

	// Editor
	AutosaveWindow  time.Duration
	AutosaveTimeout time.Duration
	UndoDepth       int

	// Logging
	LogLevel  string
	LogFormat string
	LogDir    string

	// SSE Configuration
	SSEHeartbeatIntervalSeconds int
	SSEBufferSize               int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 0)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://[::1]:3000", // IPv6 localhost
		"http://[::1]:5173", // IPv6 localhost
	})

	// Database
	DBPath = getEnvString("KENDR_DB_PATH", "db/kendr.db")
	TursoDatabaseURL = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvSecret("TURSO_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Backend / auth
	BackendURL = getEnvString("KENDR_BACKEND_URL", "")
	JWTSecret = getEnvSecret("KENDR_JWT_SECRET", "")
	ServiceTokenTTL = getEnvDuration("KENDR_SERVICE_TOKEN_TTL", 12*time.Hour)

	// Editor
	AutosaveWindow = getEnvDuration("KENDR_AUTOSAVE_WINDOW", 1000*time.Millisecond)
	AutosaveTimeout = getEnvDuration("KENDR_AUTOSAVE_TIMEOUT", 15*time.Second)
	UndoDepth = getEnvInt("KENDR_UNDO_DEPTH", 50)

	// Logging
	LogLevel = getEnvString("KENDR_LOG_LEVEL", "info")
	LogFormat = getEnvString("KENDR_LOG_FORMAT", "json")
	LogDir = getEnvString("KENDR_LOG_DIR", "")

	// SSE Configuration
	SSEHeartbeatIntervalSeconds = getEnvInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 30)
	SSEBufferSize = getEnvInt("SSE_BUFFER_SIZE", 32)
}

// ResolvedBackendURL returns the configured backend URL, falling back to this
// process's own listener.
func ResolvedBackendURL() string {
	if BackendURL != "" {
		return strings.TrimRight(BackendURL, "/")
	}
	return "http://127.0.0.1:" + Port
}
