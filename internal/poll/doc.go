// Package poll provides data-update coordinators shared by all
// integrations.
//
// Coordinator runs a fetch function on a fixed interval and fans the
// result out to registered listeners. Entities never poll devices
// directly; one coordinator per device (or account) owns the refresh
// cadence, and every entity derives its state from the coordinator's
// last result.
//
// Passive is the push variant for integrations whose data arrives
// unsolicited (BLE advertisements). It holds the latest value and
// notifies listeners when fed, with an explicit start gate so that
// no update is delivered before every entity has subscribed.
package poll
