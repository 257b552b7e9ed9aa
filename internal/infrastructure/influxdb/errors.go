package influxdb

import "errors"

// Sentinel errors for the InfluxDB sink. Callers match with errors.Is;
// most notably Connect returns ErrDisabled when the sink is turned off
// in config so the hub can run without time-series storage.
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	// Write errors after connect are asynchronous and surface via SetOnError.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates the InfluxDB sink is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
