package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Worker boundary
	ChannelBuffer int
	SampleSeed    int64

	// Preprocessing
	GPXDir            string
	CacheDir          string
	MaxChunkBytes     int
	OutputFormat      string
	DedupeMinDistance float64
	GridSizeMeters    float64
	ParseWorkers      int
	ParseTimeout      time.Duration

	EnablePprof bool
	PprofPort   string
}

func LoadConfig() *Config {
	return &Config{
		ChannelBuffer: getEnvAsInt("CHANNEL_BUFFER", 64),
		SampleSeed:    getEnvAsInt64("SAMPLE_SEED", 0),

		GPXDir:            getEnv("GPX_DIR", "GPX"),
		CacheDir:          getEnv("CACHE_DIR", "cache"),
		MaxChunkBytes:     getEnvAsInt("MAX_CHUNK_BYTES", 20*1024*1024),
		OutputFormat:      getEnv("OUTPUT_FORMAT", "gzip"),
		DedupeMinDistance: getEnvAsFloat("DEDUPE_MIN_DISTANCE_M", 50),
		GridSizeMeters:    getEnvAsFloat("GRID_SIZE_M", 50),
		ParseWorkers:      getEnvAsInt("PARSE_WORKERS", 4),
		ParseTimeout:      getEnvAsDuration("PARSE_TIMEOUT", 10*time.Minute),

		EnablePprof: getEnvAsBool("ENABLE_PPROF", false),
		PprofPort:   getEnv("PPROF_PORT", "6060"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
