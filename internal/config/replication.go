package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ReplicationConfig struct {
	QueuePath    string
	Interval     time.Duration
	BatchSize    int
	MaxBackoff   time.Duration
	StaleAfter   time.Duration
	Targets      []string // driver|dsn
	WorkerEnable bool
}

func LoadReplicationConfig() *ReplicationConfig {
	return &ReplicationConfig{
		QueuePath:    getEnv("REPLICATION_QUEUE_PATH", ".data/backup_queue.sqlite"),
		Interval:     getEnvAsDuration("REPLICATION_INTERVAL", 3*time.Second),
		BatchSize:    getEnvAsInt("REPLICATION_BATCH_SIZE", 5),
		MaxBackoff:   getEnvAsDuration("REPLICATION_MAX_BACKOFF", time.Hour),
		StaleAfter:   getEnvAsDuration("REPLICATION_STALE_AFTER", time.Minute),
		Targets:      splitTargets(os.Getenv("REPLICATION_TARGETS")),
		WorkerEnable: getEnvAsBool("REPLICATION_WORKER", true),
	}
}

// splitTargets parses "postgres|postgres://a/b;mysql|u:p@tcp(h:3306)/db".
func splitTargets(raw string) []string {
	var targets []string
	for _, t := range strings.Split(raw, ";") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
