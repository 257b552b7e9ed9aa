package southernco

import (
	"fmt"

	"github.com/Lash-L/hubcore/internal/entity"
)

// sensorKind maps one monthly-usage field to a sensor.
type sensorKind struct {
	id    string
	name  string
	unit  string
	value func(MonthlyUsage) float64
}

var sensorKinds = []sensorKind{
	{"dollars_to_date", "Cost To Date", "$", func(m MonthlyUsage) float64 { return m.DollarsToDate }},
	{"total_kwh", "Usage To Date", "kWh", func(m MonthlyUsage) float64 { return m.TotalKWH }},
	{"average_daily_usage", "Average Daily Usage", "kWh", func(m MonthlyUsage) float64 { return m.AverageDailyUsage }},
	{"average_daily_cost", "Average Daily Cost", "$", func(m MonthlyUsage) float64 { return m.AverageDailyCost }},
	{"projected_usage_low", "Projected Usage Low", "kWh", func(m MonthlyUsage) float64 { return m.ProjectedUsageLow }},
	{"projected_usage_high", "Projected Usage High", "kWh", func(m MonthlyUsage) float64 { return m.ProjectedUsageHigh }},
	{"projected_bill_low", "Projected Bill Low", "$", func(m MonthlyUsage) float64 { return m.ProjectedBillAmountLow }},
	{"projected_bill_high", "Projected Bill High", "$", func(m MonthlyUsage) float64 { return m.ProjectedBillAmountHigh }},
}

// UsageSensor renders one monthly figure for one account.
type UsageSensor struct {
	coord   *Coordinator
	account Account
	kind    sensorKind
}

// NewAccountSensors creates the full sensor set for one account.
func NewAccountSensors(coord *Coordinator, account Account) []entity.Entity {
	out := make([]entity.Entity, 0, len(sensorKinds))
	for _, kind := range sensorKinds {
		out = append(out, &UsageSensor{coord: coord, account: account, kind: kind})
	}
	return out
}

func (s *UsageSensor) UniqueID() string {
	return "southernco_" + s.account.Number + "_" + s.kind.id
}

func (s *UsageSensor) Name() string {
	name := s.account.Name
	if name == "" {
		name = s.account.Number
	}
	return name + " " + s.kind.name
}

func (s *UsageSensor) DeviceInfo() entity.DeviceInfo {
	return entity.DeviceInfo{
		Identifiers:  []string{"southernco:" + s.account.Number},
		Manufacturer: "Southern Company",
		Name:         s.account.Name,
	}
}

func (s *UsageSensor) Available() bool {
	data, ok := s.coord.Data()
	if !s.coord.LastUpdateSuccess() || !ok {
		return false
	}
	_, present := data[s.account.Number]
	return present
}

func (s *UsageSensor) State() entity.State {
	data, ok := s.coord.Data()
	if !ok {
		return entity.State{Value: "unknown"}
	}
	usage, present := data[s.account.Number]
	if !present {
		return entity.State{Value: "unknown"}
	}
	return entity.State{
		Value:      fmt.Sprintf("%.2f", s.kind.value(usage.Monthly)),
		Attributes: map[string]any{"unit": s.kind.unit},
	}
}
