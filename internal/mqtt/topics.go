package mqtt

// DeviceTopic is the per-device topic a sensor publishes its readings to.
func DeviceTopic(namespace, deviceID string) string {
	return namespace + "/device/" + deviceID
}

// AlertTopic carries limit-exceeded alerts back to a device.
func AlertTopic(namespace, deviceID string) string {
	return DeviceTopic(namespace, deviceID) + "/alert"
}

// ConfigTopic carries limit updates pushed to a device.
func ConfigTopic(namespace, deviceID string) string {
	return DeviceTopic(namespace, deviceID) + "/config"
}
