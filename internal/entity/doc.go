// Package entity defines the runtime entity model and the registry
// that fans entity state out to the hub's transports.
//
// An entity is one observable or controllable aspect of a device: a
// vacuum, a battery sensor, an energy reading. Integrations construct
// entities on top of their coordinators and register them with the
// Registry; the registry owns publication, so entities never touch
// MQTT, WebSocket, or InfluxDB directly.
//
// State is published retained to hubcore/state/{entity_id}, broadcast
// on the entity.state_changed WebSocket channel, and numeric values
// are written to InfluxDB for history.
package entity
