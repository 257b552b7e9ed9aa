// Package roborock integrates Roborock vacuums.
//
// Pairing is an email code login against the vendor cloud. Each vacuum
// gets one coordinator that prefers the LAN transport and falls back to
// the account's shared cloud MQTT session when the vacuum does not
// answer a local ping. The fallback is decided once at setup; a vacuum
// that later becomes reachable locally stays on cloud until its entry
// is reloaded.
//
// When a transport recovers after failed refreshes, cached device
// attributes (child lock, do-not-disturb, volume) are re-read before
// the device is marked available again, so entities never render stale
// cached values next to fresh status.
package roborock
