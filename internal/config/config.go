// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server, the event
// dispatcher, and the external store and broker bindings.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	MongoURI string
	MongoDB  string

	KafkaBrokers    string
	KafkaOrderTopic string
	KafkaGroupID    string

	DispatchWorkers     int
	DispatchMaxAttempts int
	DispatchBackoff     time.Duration
	QueueHighWatermark  int

	ScheduleTZ      string
	AuditRoleChange bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		MongoURI: getenv("MONGO_URI", ""),
		MongoDB:  getenv("MONGO_DB", "storefront"),

		KafkaBrokers:    getenv("KAFKA_BROKERS", ""),
		KafkaOrderTopic: getenv("KAFKA_TOPIC_ORDERS", "orders.created"),
		KafkaGroupID:    getenv("KAFKA_GROUP_ID", "order-pipeline"),

		DispatchWorkers:     atoienv("DISPATCH_WORKERS", 4),
		DispatchMaxAttempts: atoienv("DISPATCH_MAX_ATTEMPTS", 5),
		DispatchBackoff:     durenvms("DISPATCH_RETRY_BACKOFF_MS", 200),
		QueueHighWatermark:  atoienv("QUEUE_HIGH_WATERMARK", 5000),

		ScheduleTZ:      getenv("SCHEDULE_TZ", "Asia/Dhaka"),
		AuditRoleChange: boolenv("AUDIT_ROLE_CHANGES", true),
	}
}
