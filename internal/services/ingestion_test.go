package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/scalewatch/weight-monitor-backend/internal/models"
)

type fakeDeviceStore struct {
	devices map[string]*models.Device
	byOwner map[string]*models.Device
	touched []string
}

func (f *fakeDeviceStore) FindByDeviceID(_ context.Context, deviceID string) (*models.Device, error) {
	return f.devices[deviceID], nil
}

func (f *fakeDeviceStore) FindByOwner(_ context.Context, userID string) (*models.Device, error) {
	return f.byOwner[userID], nil
}

func (f *fakeDeviceStore) TouchLastActive(_ context.Context, deviceID string, _ time.Time) error {
	f.touched = append(f.touched, deviceID)
	return nil
}

type fakeReadingStore struct {
	inserted []*models.Reading
}

func (f *fakeReadingStore) Insert(_ context.Context, reading *models.Reading) error {
	f.inserted = append(f.inserted, reading)
	return nil
}

type publishedAlert struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeAlertPublisher struct {
	published []publishedAlert
}

func (f *fakeAlertPublisher) Publish(topic string, qos byte, payload []byte) error {
	f.published = append(f.published, publishedAlert{topic, qos, payload})
	return nil
}

func limit(v float64) *float64 { return &v }

func newTestIngestion(devices ...*models.Device) (*Ingestion, *fakeDeviceStore, *fakeReadingStore, *fakeAlertPublisher) {
	ds := &fakeDeviceStore{
		devices: map[string]*models.Device{},
		byOwner: map[string]*models.Device{},
	}
	for _, d := range devices {
		ds.devices[d.DeviceID] = d
		ds.byOwner[d.UserID.Hex()] = d
	}
	rs := &fakeReadingStore{}
	ap := &fakeAlertPublisher{}
	return NewIngestion(ds, rs, ap, nil, "weight-monitor"), ds, rs, ap
}

func testDevice() *models.Device {
	return &models.Device{
		ID:       primitive.NewObjectID(),
		DeviceID: "20260901_4_aabbccddeeff001122334455",
		UserID:   primitive.NewObjectID(),
	}
}

func TestHandleMessagePersistsReading(t *testing.T) {
	device := testDevice()
	svc, ds, rs, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":12.5,"scale2":3.25}`))

	require.Len(t, rs.inserted, 1)
	reading := rs.inserted[0]
	assert.Equal(t, device.DeviceID, reading.DeviceID)
	assert.Equal(t, device.UserID, reading.UserID)
	assert.Equal(t, 12.5, reading.Scale1)
	assert.Equal(t, 3.25, reading.Scale2)
	assert.Equal(t, 0.0, reading.Scale3)
	assert.Equal(t, 0.0, reading.Scale4)
	assert.Equal(t, []string{device.DeviceID}, ds.touched)
	assert.Empty(t, ap.published)
}

func TestHandleMessageAlertOnExceededLimit(t *testing.T) {
	device := testDevice()
	device.Scale2Limit = limit(50)
	svc, _, rs, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":100,"scale2":60}`))

	require.Len(t, rs.inserted, 1)
	require.Len(t, ap.published, 1)
	alert := ap.published[0]
	assert.Equal(t, "weight-monitor/device/"+device.DeviceID+"/alert", alert.topic)
	assert.Equal(t, byte(1), alert.qos)

	var msg struct {
		Type      string `json:"type"`
		Scale     string `json:"scale"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(alert.payload, &msg))
	assert.Equal(t, "LIMIT_EXCEEDED", msg.Type)
	assert.Equal(t, "Scale 2", msg.Scale)
	assert.InDelta(t, time.Now().UnixMilli(), msg.Timestamp, 5000)
}

func TestHandleMessageFirstBreachWins(t *testing.T) {
	device := testDevice()
	device.Scale1Limit = limit(10)
	device.Scale3Limit = limit(10)
	svc, _, _, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":20,"scale3":20}`))

	require.Len(t, ap.published, 1)
	assert.Contains(t, string(ap.published[0].payload), `"scale":"Scale 1"`)
}

func TestHandleMessageNoLimitsNoAlert(t *testing.T) {
	device := testDevice()
	svc, _, rs, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":9999}`))

	assert.Len(t, rs.inserted, 1)
	assert.Empty(t, ap.published)
}

func TestHandleMessageZeroLimitDisablesCheck(t *testing.T) {
	device := testDevice()
	device.Scale1Limit = limit(0)
	svc, _, _, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":9999}`))

	assert.Empty(t, ap.published)
}

func TestHandleMessageAbsentScaleNeverEvaluated(t *testing.T) {
	// A negative limit would be "exceeded" by the zero default, so the
	// check must only run for scales present in the payload.
	device := testDevice()
	device.Scale3Limit = limit(-5)
	svc, _, rs, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":1}`))

	require.Len(t, rs.inserted, 1)
	assert.Equal(t, 0.0, rs.inserted[0].Scale3)
	assert.Empty(t, ap.published)
}

func TestHandleMessageUnknownDeviceStillPersists(t *testing.T) {
	svc, ds, rs, ap := newTestIngestion()

	svc.HandleMessage("t", []byte(`{"device_id":"nonexistent","scale1":42}`))

	require.Len(t, rs.inserted, 1)
	assert.Equal(t, "nonexistent", rs.inserted[0].DeviceID)
	assert.True(t, rs.inserted[0].UserID.IsZero())
	assert.Empty(t, ds.touched)
	assert.Empty(t, ap.published)
}

func TestHandleMessageResolvesDeviceByUserID(t *testing.T) {
	device := testDevice()
	device.Scale1Limit = limit(5)
	svc, _, rs, ap := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"user_id":"`+device.UserID.Hex()+`","scale1":10}`))

	require.Len(t, rs.inserted, 1)
	assert.Equal(t, device.DeviceID, rs.inserted[0].DeviceID)
	assert.Equal(t, device.UserID, rs.inserted[0].UserID)
	assert.Len(t, ap.published, 1)
}

func TestHandleMessageNoIdentifiersDropped(t *testing.T) {
	svc, _, rs, _ := newTestIngestion()

	svc.HandleMessage("t", []byte(`{"scale1":42}`))

	assert.Empty(t, rs.inserted)
}

func TestHandleMessageBadJSONDropped(t *testing.T) {
	svc, _, rs, _ := newTestIngestion()

	svc.HandleMessage("t", []byte(`{not json`))

	assert.Empty(t, rs.inserted)
}

func TestHandleMessageUsesPayloadTimestamp(t *testing.T) {
	device := testDevice()
	svc, _, rs, _ := newTestIngestion(device)

	svc.HandleMessage("t", []byte(`{"device_id":"`+device.DeviceID+`","scale1":1,"timestamp":"2026-08-15T10:30:00Z"}`))

	require.Len(t, rs.inserted, 1)
	assert.Equal(t, time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC), rs.inserted[0].Timestamp.UTC())
}
