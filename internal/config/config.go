package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	PatientQueueKey string
	QueueWait      time.Duration

	// Run inputs shared with the rest of the follow-up pipeline.
	RunFile           string
	ReferenceWorkbook string
	RecordsCSV        string

	// Host application session.
	HostAppURL string
	Headless   bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 1),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		PatientQueueKey: getEnv("PATIENT_QUEUE_KEY", "phis:introduce:patients"),
		QueueWait:       getEnvAsDuration("QUEUE_WAIT", 2*time.Second),

		RunFile:           getEnv("RUN_FILE", "执行结果/env.txt"),
		ReferenceWorkbook: getEnv("REFERENCE_WORKBOOK", "文档/药品对照表.xlsx"),
		RecordsCSV:        getEnv("RECORDS_CSV", "执行结果/用药记录.csv"),

		HostAppURL: getEnv("HOST_APP_URL", ""),
		Headless:   getEnvAsBool("HEADLESS", true),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
