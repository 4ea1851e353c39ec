package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "weight-monitor/device/abc", DeviceTopic("weight-monitor", "abc"))
	assert.Equal(t, "weight-monitor/device/abc/alert", AlertTopic("weight-monitor", "abc"))
	assert.Equal(t, "weight-monitor/device/abc/config", ConfigTopic("weight-monitor", "abc"))
}
