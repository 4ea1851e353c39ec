package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/scalewatch/weight-monitor-backend/internal/config"
	"github.com/scalewatch/weight-monitor-backend/internal/mqtt"
)

type readingMessage struct {
	DeviceID  string    `json:"device_id"`
	Scale1    float64   `json:"scale1"`
	Scale2    float64   `json:"scale2"`
	Scale3    float64   `json:"scale3"`
	Scale4    float64   `json:"scale4"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	deviceID := flag.String("device", "", "deviceId to publish readings for (required)")
	count := flag.Int("count", 100, "number of readings to publish")
	interval := flag.Duration("interval", 2*time.Second, "delay between readings")
	base := flag.Float64("base", 40, "base weight per scale in kg")
	jitter := flag.Float64("jitter", 10, "random variation added to each scale")
	flag.Parse()

	if *deviceID == "" {
		log.Fatal().Msg("-device is required")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	// Random suffix so concurrent simulators don't evict each other
	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("weight-sim_" + uuid.NewString()[:8])
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	topic := mqtt.DeviceTopic(cfg.MQTTNamespace, *deviceID)
	log.Info().Str("topic", topic).Int("count", *count).Msg("publishing simulated readings")

	for i := 0; i < *count; i++ {
		msg := readingMessage{
			DeviceID:  *deviceID,
			Scale1:    *base + rand.Float64()**jitter,
			Scale2:    *base + rand.Float64()**jitter,
			Scale3:    *base + rand.Float64()**jitter,
			Scale4:    *base + rand.Float64()**jitter,
			Timestamp: time.Now(),
		}
		payload, _ := json.Marshal(msg)
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		time.Sleep(*interval)
	}
	log.Info().Msg("simulation done")
}
