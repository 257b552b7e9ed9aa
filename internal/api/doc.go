// Package api implements the HTTP REST API and WebSocket server for Hub Core.
//
// This package provides:
//   - REST endpoints for pairing flows, config entries, and entity commands
//   - WebSocket hub for real-time entity state broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces (mobile apps, web admin) and
// the integration runtime. Pairing requests drive flow sessions that end in
// persisted config entries; entity state changes flow from integration
// coordinators through the entity registry, which broadcasts them to
// WebSocket clients and mirrors them onto the MQTT bus.
//
// # Security
//
// Authentication uses JWT tokens issued against the configured operator
// credentials. WebSocket connections use single-use tickets to prevent
// token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT — state mirroring to the bus is
// disabled but all REST and WebSocket functionality still works.
package api
