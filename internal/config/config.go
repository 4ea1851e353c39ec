package config

import (
	"os"
	"strings"
)

type Config struct {
	MongoURI       string
	RedisURI       string
	JWTSecret      string
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	MQTTBroker    string // tcp:// URI of the broker
	MQTTClientID  string // base client id; a random suffix is appended per process
	MQTTTopic     string // shared inbound readings topic
	MQTTNamespace string // prefix for per-device topics
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		if u := strings.TrimSpace(getEnv("FRONTEND_URL", "http://localhost:3000")); u != "" {
			allowedOrigins = append(allowedOrigins, u)
		}
	}

	broker := getEnv("MQTT_BROKER", "localhost")
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker + ":" + getEnv("MQTT_PORT", "1883")
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/weight-monitor")),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:           getEnv("PORT", "5000"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,
		MQTTBroker:     broker,
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "weight-monitor-backend"),
		MQTTTopic:      getEnv("MQTT_TOPIC", "weight-monitor/readings"),
		MQTTNamespace:  getEnv("MQTT_NAMESPACE", "weight-monitor"),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
