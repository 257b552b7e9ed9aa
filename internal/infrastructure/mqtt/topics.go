package mqtt

import "strings"

// Topic structure for Hub Core.
//
// All hub topics live under the "hubcore/" prefix:
//
//	hubcore/system/status          — online/offline status (retained, LWT)
//	hubcore/state/{entity_id}      — entity state snapshots (retained)
//	hubcore/event/{domain}         — integration lifecycle events
//	hubcore/ble/advertisement      — BLE frames relayed by scanner proxies
//
// Entity IDs never contain "/" so the state tree stays one level deep.
const topicPrefix = "hubcore"

// Topics builds Hub Core topic strings.
// The zero value is ready to use:
//
//	mqtt.Topics{}.EntityState("vacuum_a01_battery")
type Topics struct{}

// SystemStatus returns the hub online/offline status topic.
// Messages on this topic are retained so late subscribers see the last state.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// EntityState returns the state topic for a single entity.
func (Topics) EntityState(entityID string) string {
	return topicPrefix + "/state/" + entityID
}

// AllEntityStates returns a wildcard matching every entity state topic.
func (Topics) AllEntityStates() string {
	return topicPrefix + "/state/+"
}

// IntegrationEvent returns the lifecycle event topic for an integration domain
// (entry loaded, entry unloaded, setup retry).
func (Topics) IntegrationEvent(domain string) string {
	return topicPrefix + "/event/" + domain
}

// BLEAdvertisements returns the topic BLE scanner proxies publish raw
// advertisement frames to.
func (Topics) BLEAdvertisements() string {
	return topicPrefix + "/ble/advertisement"
}

// EntityIDFromStateTopic extracts the entity ID from a state topic.
// Returns "" if the topic is not an entity state topic.
func EntityIDFromStateTopic(topic string) string {
	const prefix = topicPrefix + "/state/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
