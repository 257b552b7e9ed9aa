package southernco

import "time"

// EnergyWriter is the slice of the InfluxDB client statistics use.
type EnergyWriter interface {
	WriteEnergyUsage(accountID string, usageKWh float64, costDollars *float64, tempF *float64, ts time.Time)
}

// Statistics streams hourly records into the metrics store.
//
// Records without a timestamp or a usage figure are skipped: the
// vendor pads recent hours with placeholder rows before the meter
// reports, and writing those as zeros would corrupt the history.
// Cost and temperature stay optional fields, absent rather than zero.
type Statistics struct {
	writer EnergyWriter
}

// NewStatistics creates the hourly-record sink.
func NewStatistics(writer EnergyWriter) *Statistics {
	return &Statistics{writer: writer}
}

// WriteHourly writes one refresh's records. Re-writing a record for an
// hour already stored overwrites the same point, so overlapping fetch
// windows stay idempotent.
func (s *Statistics) WriteHourly(accountNumber string, records []HourlyEnergyUsage) {
	for _, rec := range records {
		if rec.Time == nil || rec.Usage == nil {
			continue
		}
		s.writer.WriteEnergyUsage(accountNumber, *rec.Usage, rec.Cost, rec.Temp, *rec.Time)
	}
}
