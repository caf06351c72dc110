package mqtt

import "fmt"

// Topic prefixes. All topics live under a single tvcast/ root so broker
// ACLs can scope the whole service with one rule.
const (
	// TopicPrefix is the base for all published topics.
	TopicPrefix = "tvcast"

	// TopicPrefixSystem is the base for service lifecycle topics.
	TopicPrefixSystem = "tvcast/system"
)

// Topics provides builders for the published topic hierarchy.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// SystemStatus returns the service online/offline status topic.
// Retained, so subscribers always see the last known state.
//
// Example: tvcast/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// Activity returns the topic carrying dispatch activity events.
//
// Example: tvcast/activity
func (Topics) Activity() string {
	return TopicPrefix + "/activity"
}

// DeviceEvent returns the topic for per-device lifecycle events
// (paired, default changed, removed).
//
// Example: tvcast/device/living-room-id/event
func (Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/event", TopicPrefix, deviceID)
}
