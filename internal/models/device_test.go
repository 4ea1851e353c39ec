package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateDeviceID(t *testing.T) {
	userID, err := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.NoError(t, err)

	at := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "20260901_4_507f1f77bcf86cd799439011", GenerateDeviceID(userID, 4, at))

	// Stable within a day regardless of time
	later := time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, GenerateDeviceID(userID, 4, at), GenerateDeviceID(userID, 4, later))

	// Scale count changes the id
	assert.Equal(t, "20260901_2_507f1f77bcf86cd799439011", GenerateDeviceID(userID, 2, at))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusActive))
	assert.True(t, ValidStatus(StatusInactive))
	assert.True(t, ValidStatus(StatusMaintenance))
	assert.False(t, ValidStatus("retired"))
	assert.False(t, ValidStatus(""))
}

func TestDeviceLimits(t *testing.T) {
	l2 := 50.0
	d := Device{Scale2Limit: &l2}

	limits := d.Limits()
	assert.Nil(t, limits[0])
	assert.Equal(t, 50.0, *limits[1])
	assert.Nil(t, limits[2])
	assert.Nil(t, limits[3])
}

func TestDeviceAgeDays(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	d := Device{CreatedAt: now.AddDate(0, 0, -10)}
	assert.Equal(t, 10, d.AgeDays(now))

	fresh := Device{CreatedAt: now.Add(-2 * time.Hour)}
	assert.Equal(t, 0, fresh.AgeDays(now))
}
