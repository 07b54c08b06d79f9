package platform

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration shared by the CLI and the HTTP server.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string

	PilotageRatesPath  string
	ShowLegacyOptional bool
	ContractProfile    string

	LiveDataEnabled     bool
	LiveDataTimeout     time.Duration
	LiveDataTTL         time.Duration
	LiveRefreshSchedule string

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	Port               int
	CORSAllowedOrigins []string
	APIKey             string

	LogLevel  string
	LogPretty bool
	AWSRegion string
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() Config {
	// .env is optional
	_ = godotenv.Load()

	return Config{
		DatabaseDriver: GetEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    GetEnv("DATABASE_URL", "file:portcost.db"),

		PilotageRatesPath:  GetEnv("PILOTAGE_RATES_PATH", ""),
		ShowLegacyOptional: GetEnvBool("SHOW_LEGACY_OPTIONAL", false),
		ContractProfile:    GetEnv("CONTRACT_PROFILE", ""),

		LiveDataEnabled:     GetEnvBool("LIVE_DATA_ENABLED", false),
		LiveDataTimeout:     GetEnvDuration("LIVE_DATA_TIMEOUT", 4*time.Second),
		LiveDataTTL:         GetEnvDuration("LIVE_DATA_TTL", 30*time.Minute),
		LiveRefreshSchedule: GetEnv("LIVE_REFRESH_SCHEDULE", "@every 30m"),

		ClickHouseAddr:     GetEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: GetEnv("CLICKHOUSE_DATABASE", "portcost"),
		ClickHouseUsername: GetEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: GetEnv("CLICKHOUSE_PASSWORD", ""),

		Port:               GetEnvInt("PORT", 8080),
		CORSAllowedOrigins: GetEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		APIKey:             GetEnv("API_KEY", ""),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogPretty: GetEnvBool("LOG_PRETTY", false),
		AWSRegion: GetEnv("AWS_REGION", "us-west-2"),
	}
}

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if strings.ToLower(val) == "true" || val == "1" {
			return true
		}
		return false
	}
	return defaultVal
}

func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetEnvList splits a comma-separated value, dropping empty entries.
func GetEnvList(key string, defaultVal []string) []string {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	if out := SplitList(val); len(out) > 0 {
		return out
	}
	return defaultVal
}

// SplitList splits a comma-separated list, trimming and dropping empty entries.
func SplitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
