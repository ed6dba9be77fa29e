package config

import (
	"os"
	"strconv"
)

type Config struct {
	NatsURL      string
	NatsUser     string
	NatsPassword string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	VTAPIKey  string
	OTXAPIKey string

	GeoIPDBPath   string
	YaraRulesPath string

	OpsAddr string
}

func LoadConfig() *Config {
	return &Config{
		NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NatsUser:     getEnv("NATS_USER", ""),
		NatsPassword: getEnv("NATS_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvBool("REDIS_TLS", false),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "kestrel"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "kestrel"),

		VTAPIKey:  getEnv("VT_API_KEY", ""),
		OTXAPIKey: getEnv("OTX_API_KEY", ""),

		GeoIPDBPath:   getEnv("GEOIP_DB_PATH", "./GeoLite2-City.mmdb"),
		YaraRulesPath: getEnv("YARA_RULES_PATH", "./config/yara/suspicious.yaml"),

		OpsAddr: getEnv("OPS_ADDR", ":8081"),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch val {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}
