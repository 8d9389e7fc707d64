package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                 int
	DemDir               string
	ReadingThreads       int
	ComputingThreads     int
	MaxMemoryMB          int
	InterpolationOverlap bool
	HqEnabled            bool
	QualityScale         float64
	WarmupIndex          bool
	LogLevel             string
}

func Load() *Config {
	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		DemDir:               getEnv("DEM_DIR", "/data"),
		ReadingThreads:       getEnvInt("READING_THREADS", 1),
		ComputingThreads:     getEnvInt("COMPUTING_THREADS", 1),
		MaxMemoryMB:          getEnvInt("MAX_MEMORY_MB", 256),
		InterpolationOverlap: getEnvBool("INTERPOLATION_OVERLAP", true),
		HqEnabled:            getEnvBool("HQ_ENABLED", true),
		QualityScale:         getEnvFloat("QUALITY_SCALE", 1.0),
		WarmupIndex:          getEnvBool("WARMUP_INDEX", true),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
