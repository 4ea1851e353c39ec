package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "weight-monitor/readings", cfg.MQTTTopic)
	assert.Equal(t, "weight-monitor", cfg.MQTTNamespace)
	assert.NotEmpty(t, cfg.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("MQTT_BROKER", "ssl://broker.example.com:8883")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "ssl://broker.example.com:8883", cfg.MQTTBroker)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestBrokerHostGetsSchemeAndPort(t *testing.T) {
	t.Setenv("MQTT_BROKER", "broker.example.com")
	t.Setenv("MQTT_PORT", "1884")

	cfg := Load()
	assert.Equal(t, "tcp://broker.example.com:1884", cfg.MQTTBroker)
}
