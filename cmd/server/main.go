package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/scalewatch/weight-monitor-backend/internal/config"
	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/handlers"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
	"github.com/scalewatch/weight-monitor-backend/internal/mqtt"
	"github.com/scalewatch/weight-monitor-backend/internal/routes"
	"github.com/scalewatch/weight-monitor-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found")
	}
	cfg := config.Load()

	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.JWTSecret == "your-secret-key-change-in-production" && cfg.IsProduction() {
		log.Fatal().Msg("JWT_SECRET must be set in production")
	}

	log.Info().Msg("connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer database.Disconnect()

	if err := database.EnsureIndexes(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure MongoDB indexes")
	}

	log.Info().Msg("connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer database.DisconnectRedis()

	ingestion := services.NewIngestion(
		services.MongoDeviceStore{},
		services.MongoReadingStore{},
		nil, // replaced with the broker below
		services.RedisLiveFeed{},
		cfg.MQTTNamespace,
	)

	log.Info().Str("broker", cfg.MQTTBroker).Msg("connecting to MQTT broker...")
	broker, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID, ingestion.HandleMessage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}
	defer broker.Disconnect()
	ingestion.SetAlertPublisher(broker)

	if err := broker.Subscribe(cfg.MQTTTopic); err != nil {
		log.Fatal().Err(err).Str("topic", cfg.MQTTTopic).Msg("failed to subscribe to readings topic")
	}
	subscribeDeviceTopics(broker, cfg.MQTTNamespace)

	handlers.Init(cfg, broker)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
	}
	r.Use(middleware.RateLimit)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Weight Monitor API","status":"running"}`))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Route not found"}`))
	})

	routes.SetupRoutes(r, cfg)

	log.Info().Str("port", cfg.Port).Msg("weight monitor backend running")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// subscribeDeviceTopics restores per-device topic subscriptions for devices
// registered before this process started.
func subscribeDeviceTopics(broker *mqtt.Broker, namespace string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := database.DB.Collection("devices").Find(ctx, bson.M{})
	if err != nil {
		log.Warn().Err(err).Msg("could not list devices for topic subscription")
		return
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var device models.Device
		if err := cursor.Decode(&device); err != nil {
			continue
		}
		if err := broker.Subscribe(mqtt.DeviceTopic(namespace, device.DeviceID)); err != nil {
			log.Warn().Err(err).Str("deviceId", device.DeviceID).Msg("device topic subscribe failed")
			continue
		}
		count++
	}
	log.Info().Int("devices", count).Msg("subscribed to device topics")
}
