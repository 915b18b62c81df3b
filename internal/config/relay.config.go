package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr     string
	RedisAddr    string
	RedisPass    string
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	JWTSecret    string
	PublishToken string
}

func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Relay: No .env file found, relying on system env vars")
	}
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8017"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "relay_events"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "kafka:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "notification.events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "relay-workers"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		PublishToken: getEnv("PUBLISH_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
