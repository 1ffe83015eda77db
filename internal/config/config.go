package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API
	APIPort int

	// Pub/Sub
	PubSubTopic             string
	DispatchIntervalSeconds int
	ScreenshotPollSeconds   int

	// Screenshot archive (disabled when ArchiveFTPHost is empty)
	ArchiveFTPHost       string
	ArchiveFTPPort       int
	ArchiveFTPUsername   string
	ArchiveFTPPassword   string
	ArchiveFTPPath       string
	ArchiveRetentionDays int
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a hostname-based value if crypto/rand fails
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// JWT Secret - generate random if not provided
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32) // 64 character hex string
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Sessions will not persist across restarts.")
	}

	// Database password - warn if using default
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	// Redis password - warn if using default
	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "sns"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "sns"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		// JWT
		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 168), // 7 days default

		// API
		APIPort: getEnvInt("API_PORT", 8080),

		// Pub/Sub
		PubSubTopic:             getEnv("PUBSUB_TOPIC", "device-notifications"),
		DispatchIntervalSeconds: getEnvInt("DISPATCH_INTERVAL_SECONDS", 5),
		ScreenshotPollSeconds:   getEnvInt("SCREENSHOT_POLL_SECONDS", 30),

		// Screenshot archive
		ArchiveFTPHost:       getEnv("ARCHIVE_FTP_HOST", ""),
		ArchiveFTPPort:       getEnvInt("ARCHIVE_FTP_PORT", 21),
		ArchiveFTPUsername:   getEnv("ARCHIVE_FTP_USERNAME", ""),
		ArchiveFTPPassword:   getEnv("ARCHIVE_FTP_PASSWORD", ""),
		ArchiveFTPPath:       getEnv("ARCHIVE_FTP_PATH", "/sns/screenshots"),
		ArchiveRetentionDays: getEnvInt("ARCHIVE_RETENTION_DAYS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
