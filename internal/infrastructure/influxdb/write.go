package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityMetric writes a single numeric entity state value.
//
// This is the primary method for mirroring entity telemetry into the
// time-series store. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Example:
//
//	client.WriteEntityMetric("vacuum_a01_battery", "value", 87)
func (c *Client) WriteEntityMetric(entityID string, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_metrics",
		map[string]string{
			"entity_id": entityID,
			"field":     field,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEnergyUsage writes one hourly energy usage record for a utility
// account. The point is timestamped with the record's own hour, so
// re-writing the same record is idempotent (same series, same timestamp).
//
// Optional fields (cost, temperature) are only written when the caller has
// them; absent fields stay absent rather than defaulting to zero.
func (c *Client) WriteEnergyUsage(accountID string, usageKWh float64, costDollars *float64, tempF *float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"usage_kwh": usageKWh,
	}
	if costDollars != nil {
		fields["cost_dollars"] = *costDollars
	}
	if tempF != nil {
		fields["temperature_f"] = *tempF
	}

	point := write.NewPoint(
		"energy_usage",
		map[string]string{
			"account_id": accountID,
		},
		fields,
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
