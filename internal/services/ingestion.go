package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/scalewatch/weight-monitor-backend/internal/models"
	"github.com/scalewatch/weight-monitor-backend/internal/mqtt"
)

// DeviceStore is the device lookup surface the ingestion path needs.
// Implementations return (nil, nil) when no device matches.
type DeviceStore interface {
	FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	FindByOwner(ctx context.Context, userID string) (*models.Device, error)
	TouchLastActive(ctx context.Context, deviceID string, at time.Time) error
}

// ReadingStore persists telemetry samples.
type ReadingStore interface {
	Insert(ctx context.Context, reading *models.Reading) error
}

// AlertPublisher hands alert messages to the transport. The broker
// satisfies it; tests use a fake.
type AlertPublisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// LiveFeed fans persisted readings out to connected dashboard clients.
type LiveFeed interface {
	PublishReading(ctx context.Context, reading *models.Reading) error
}

// ReadingPayload is the inbound message shape. Scale values are pointers
// so an absent scale is distinguishable from an explicit zero: absent
// scales are stored as zero and never evaluated against limits.
type ReadingPayload struct {
	DeviceID  string     `json:"device_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Scale1    *float64   `json:"scale1,omitempty"`
	Scale2    *float64   `json:"scale2,omitempty"`
	Scale3    *float64   `json:"scale3,omitempty"`
	Scale4    *float64   `json:"scale4,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type alertMessage struct {
	Type      string `json:"type"`
	Scale     string `json:"scale"`
	Timestamp int64  `json:"timestamp"`
}

// Ingestion turns inbound broker messages into persisted readings and,
// when a limit is breached, outbound alerts. Every failure is terminal for
// that message: logged, never retried, never surfaced to a caller.
type Ingestion struct {
	devices   DeviceStore
	readings  ReadingStore
	alerts    AlertPublisher
	live      LiveFeed
	namespace string
}

func NewIngestion(devices DeviceStore, readings ReadingStore, alerts AlertPublisher, live LiveFeed, namespace string) *Ingestion {
	return &Ingestion{
		devices:   devices,
		readings:  readings,
		alerts:    alerts,
		live:      live,
		namespace: namespace,
	}
}

// SetAlertPublisher installs the alert transport after construction. The
// broker is dialed with this service's HandleMessage as its handler, so the
// two cannot be built in one step.
func (s *Ingestion) SetAlertPublisher(alerts AlertPublisher) {
	s.alerts = alerts
}

// HandleMessage processes one inbound message end to end.
func (s *Ingestion) HandleMessage(topic string, payload []byte) {
	var p ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("discarding unparseable reading payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Resolve the target device with a single fetch. A known device_id that
	// matches nothing still produces a persisted (orphaned) reading; it only
	// skips alerting.
	var device *models.Device
	deviceID := p.DeviceID
	if deviceID != "" {
		d, err := s.devices.FindByDeviceID(ctx, deviceID)
		if err != nil {
			log.Error().Err(err).Str("deviceId", deviceID).Msg("device lookup failed")
		}
		device = d
	} else {
		if p.UserID == "" {
			log.Warn().Str("topic", topic).Msg("reading has neither device_id nor user_id, ignoring")
			return
		}
		d, err := s.devices.FindByOwner(ctx, p.UserID)
		if err != nil || d == nil {
			log.Warn().Err(err).Str("userId", p.UserID).Msg("could not match reading to a device")
			return
		}
		device = d
		deviceID = d.DeviceID
	}

	ts := time.Now()
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}

	reading := &models.Reading{
		ID:        primitive.NewObjectID(),
		DeviceID:  deviceID,
		Scale1:    valueOrZero(p.Scale1),
		Scale2:    valueOrZero(p.Scale2),
		Scale3:    valueOrZero(p.Scale3),
		Scale4:    valueOrZero(p.Scale4),
		Timestamp: ts,
	}
	if device != nil {
		reading.UserID = device.UserID
	} else if oid, err := primitive.ObjectIDFromHex(p.UserID); err == nil {
		reading.UserID = oid
	}

	if err := s.readings.Insert(ctx, reading); err != nil {
		log.Error().Err(err).Str("deviceId", deviceID).Msg("failed to save reading")
		return
	}

	if s.live != nil {
		if err := s.live.PublishReading(ctx, reading); err != nil {
			log.Warn().Err(err).Str("deviceId", deviceID).Msg("live publish failed")
		}
	}

	if device == nil {
		return
	}

	if err := s.devices.TouchLastActive(ctx, deviceID, ts); err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("lastActive update failed")
	}

	if scale, ok := firstExceededScale(device, &p); ok {
		s.publishAlert(deviceID, scale)
	}
}

// firstExceededScale evaluates scales in fixed order 1..4 and stops at the
// first limit exceeded, so at most one alert fires per message. A nil or
// zero limit disables the check for that scale; absent payload values are
// never evaluated.
func firstExceededScale(device *models.Device, p *ReadingPayload) (string, bool) {
	limits := device.Limits()
	values := [models.MaxScales]*float64{p.Scale1, p.Scale2, p.Scale3, p.Scale4}
	for i := 0; i < models.MaxScales; i++ {
		if limits[i] == nil || *limits[i] == 0 || values[i] == nil {
			continue
		}
		if *values[i] > *limits[i] {
			return fmt.Sprintf("Scale %d", i+1), true
		}
	}
	return "", false
}

func (s *Ingestion) publishAlert(deviceID, scale string) {
	if s.alerts == nil {
		return
	}
	msg, err := json.Marshal(alertMessage{
		Type:      "LIMIT_EXCEEDED",
		Scale:     scale,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Error().Err(err).Msg("alert encode failed")
		return
	}

	topic := mqtt.AlertTopic(s.namespace, deviceID)
	if err := s.alerts.Publish(topic, 1, msg); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("alert publish failed")
		return
	}
	log.Info().Str("deviceId", deviceID).Str("scale", scale).Msg("weight limit exceeded, alert published")
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
