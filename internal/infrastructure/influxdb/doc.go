// Package influxdb provides the time-series sink for Hub Core.
//
// Two kinds of data land here:
//   - Entity telemetry: numeric entity states mirrored on every update
//   - Energy statistics: hourly utility usage records from the Southern
//     Company integration, timestamped with the record's own hour
//
// Writes are non-blocking and batched by the underlying client; async
// write failures surface through the SetOnError callback.
//
// The integration is optional. When influxdb.enabled is false in config,
// Connect returns ErrDisabled and callers run without a sink.
package influxdb
