package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the
// reservation service.
type Config struct {
	HTTPPort         int
	MetricsPort      int
	SQLiteDSN        string
	SessionTTL       time.Duration
	LogLevel         string
	MaxActive        int
	AdvanceWindow    time.Duration
	ReminderLead     time.Duration
	ReminderInterval time.Duration
	KafkaBrokers     []string
	KafkaTopic       string
	RedisAddr        string
	RedisChannel     string
}

// Load parses configuration values from the current process environment.
// Optional fields fall back to sensible defaults; malformed values are
// reported together so operators can fix them in one pass.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		MetricsPort:      9090,
		SQLiteDSN:        "file:reservation.db?_foreign_keys=on",
		SessionTTL:       24 * time.Hour,
		LogLevel:         "info",
		MaxActive:        3,
		AdvanceWindow:    7 * 24 * time.Hour,
		ReminderLead:     30 * time.Minute,
		ReminderInterval: time.Minute,
		KafkaTopic:       "reservation-events",
		RedisChannel:     "classroom",
	}

	invalid := make([]string, 0, 2)

	readPort := func(name string, target *int) {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return
		}
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, name)
			return
		}
		*target = port
	}
	readDuration := func(name string, target *time.Duration) {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, name)
			return
		}
		*target = d
	}

	readPort("RESERVATION_HTTP_PORT", &cfg.HTTPPort)
	readPort("RESERVATION_METRICS_PORT", &cfg.MetricsPort)
	readDuration("RESERVATION_SESSION_TTL", &cfg.SessionTTL)
	readDuration("RESERVATION_ADVANCE_WINDOW", &cfg.AdvanceWindow)
	readDuration("RESERVATION_REMINDER_LEAD", &cfg.ReminderLead)
	readDuration("RESERVATION_REMINDER_INTERVAL", &cfg.ReminderInterval)

	if dsn := strings.TrimSpace(os.Getenv("RESERVATION_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if level := strings.TrimSpace(os.Getenv("RESERVATION_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if maxValue := strings.TrimSpace(os.Getenv("RESERVATION_MAX_ACTIVE")); maxValue != "" {
		max, err := strconv.Atoi(maxValue)
		if err != nil || max <= 0 {
			invalid = append(invalid, "RESERVATION_MAX_ACTIVE")
		} else {
			cfg.MaxActive = max
		}
	}

	if brokers := strings.TrimSpace(os.Getenv("RESERVATION_KAFKA_BROKERS")); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if topic := strings.TrimSpace(os.Getenv("RESERVATION_KAFKA_TOPIC")); topic != "" {
		cfg.KafkaTopic = topic
	}
	if addr := strings.TrimSpace(os.Getenv("RESERVATION_REDIS_ADDR")); addr != "" {
		cfg.RedisAddr = addr
	}
	if channel := strings.TrimSpace(os.Getenv("RESERVATION_REDIS_CHANNEL")); channel != "" {
		cfg.RedisChannel = channel
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
