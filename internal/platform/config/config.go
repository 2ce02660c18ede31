package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	ArbitrationThreshold float64
	MinJudgesPerSection  int
	MinJudgesFallback    int
	PromotionBand        int
	PointTable           []int

	MinScoringDwell time.Duration
	MaxScoringDwell time.Duration

	EnableSessionTimeoutSweep bool
	EnableAuditRelay          bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "galileo"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		ArbitrationThreshold: envFloat("ARBITRATION_THRESHOLD", 5.0),
		MinJudgesPerSection:  envInt("MIN_JUDGES_PER_SECTION", 2),
		MinJudgesFallback:    envInt("MIN_JUDGES_FALLBACK", 1),
		PromotionBand:        envInt("PROMOTION_BAND", 4),
		PointTable:           envInts("POINT_TABLE", []int{12, 10, 8, 6}),

		MinScoringDwell: envDuration("MIN_SCORING_DWELL", 2*time.Minute),
		MaxScoringDwell: envDuration("MAX_SCORING_DWELL", 2*time.Hour),

		EnableSessionTimeoutSweep: envBool("ENABLE_SESSION_TIMEOUT_SWEEP", true),
		EnableAuditRelay:          envBool("ENABLE_AUDIT_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInts(name string, fallback []int) []int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	var values []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return fallback
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
