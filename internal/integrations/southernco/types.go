package southernco

import (
	"errors"
	"time"
)

var (
	// ErrAuth indicates rejected credentials or an expired session the
	// vendor refused to renew.
	ErrAuth = errors.New("authentication failed")

	// ErrConnect indicates the vendor API could not be reached.
	ErrConnect = errors.New("connection failed")
)

// Account is one utility account on a login.
type Account struct {
	Number  string `json:"accountNumber"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// MonthlyUsage is the account's billing-cycle-to-date figures.
type MonthlyUsage struct {
	DollarsToDate           float64 `json:"dollarsToDate"`
	TotalKWH                float64 `json:"totalKWH"`
	AverageDailyUsage       float64 `json:"averageDailyUsage"`
	AverageDailyCost        float64 `json:"averageDailyCost"`
	ProjectedUsageLow       float64 `json:"projectedUsageLow"`
	ProjectedUsageHigh      float64 `json:"projectedUsageHigh"`
	ProjectedBillAmountLow  float64 `json:"projectedBillAmountLow"`
	ProjectedBillAmountHigh float64 `json:"projectedBillAmountHigh"`
}

// HourlyEnergyUsage is one hourly meter record. The vendor omits
// fields for hours it has not metered yet, so everything is optional.
type HourlyEnergyUsage struct {
	Time  *time.Time `json:"time"`
	Usage *float64   `json:"usage"`
	Cost  *float64   `json:"cost"`
	Temp  *float64   `json:"temp"`
}

// AccountUsage bundles one refresh's data for one account.
type AccountUsage struct {
	Account Account
	Monthly MonthlyUsage
	Hourly  []HourlyEnergyUsage
}

// UsageData is the coordinator's payload: usage keyed by account number.
type UsageData map[string]AccountUsage
