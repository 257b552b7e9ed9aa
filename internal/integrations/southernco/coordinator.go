package southernco

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lash-L/hubcore/internal/poll"
)

// DefaultScanInterval matches the vendor's hourly metering cadence.
const DefaultScanInterval = time.Hour

// hourlyWindow is how far back each refresh asks for hourly records.
// Overlap is harmless: statistics writes are idempotent per timestamp.
const hourlyWindow = 48 * time.Hour

// API is the slice of the vendor client the coordinator uses.
type API interface {
	EnsureAuth(ctx context.Context) error
	GetAccounts(ctx context.Context) ([]Account, error)
	GetMonthData(ctx context.Context, accountNumber string) (*MonthlyUsage, error)
	GetHourlyData(ctx context.Context, accountNumber string, start, end time.Time) ([]HourlyEnergyUsage, error)
}

// StatisticsSink receives each refresh's hourly records.
type StatisticsSink interface {
	WriteHourly(accountNumber string, records []HourlyEnergyUsage)
}

// Coordinator polls monthly and hourly usage for every account on one
// login and forwards hourly records to the statistics sink.
type Coordinator struct {
	api   API
	sink  StatisticsSink
	now   func() time.Time
	accts []Account

	poll *poll.Coordinator[UsageData]
}

// NewCoordinator creates the usage coordinator. sink may be nil when
// history storage is disabled.
func NewCoordinator(api API, sink StatisticsSink, interval time.Duration, logger poll.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	c := &Coordinator{api: api, sink: sink, now: time.Now}
	c.poll = poll.NewCoordinator("southern_company", interval, c.update)
	c.poll.SetLogger(logger)
	return c
}

// Start fetches the account list and begins polling. The first refresh
// runs synchronously.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.api.EnsureAuth(ctx); err != nil {
		return err
	}
	accts, err := c.api.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}
	c.accts = accts
	return c.poll.Start(ctx)
}

// update refreshes every account. Auth rejections surface as
// ErrAuthFailed so the integration can flag the entry for reauth;
// everything else is a plain update failure.
func (c *Coordinator) update(ctx context.Context) (UsageData, error) {
	if err := c.api.EnsureAuth(ctx); err != nil {
		return nil, translateErr("refreshing session", err)
	}

	end := c.now()
	start := end.Add(-hourlyWindow)

	data := make(UsageData, len(c.accts))
	for _, acct := range c.accts {
		monthly, err := c.api.GetMonthData(ctx, acct.Number)
		if err != nil {
			return nil, translateErr("fetching month data for "+acct.Number, err)
		}

		hourly, err := c.api.GetHourlyData(ctx, acct.Number, start, end)
		if err != nil {
			return nil, translateErr("fetching hourly data for "+acct.Number, err)
		}

		data[acct.Number] = AccountUsage{Account: acct, Monthly: *monthly, Hourly: hourly}
		if c.sink != nil {
			c.sink.WriteHourly(acct.Number, hourly)
		}
	}
	return data, nil
}

func translateErr(op string, err error) error {
	if errors.Is(err, ErrAuth) {
		return fmt.Errorf("%w: %s: %v", poll.ErrAuthFailed, op, err)
	}
	return fmt.Errorf("%w: %s: %v", poll.ErrUpdateFailed, op, err)
}

// Accounts returns the accounts discovered at Start.
func (c *Coordinator) Accounts() []Account { return c.accts }

// Data returns the last successful refresh.
func (c *Coordinator) Data() (UsageData, bool) { return c.poll.Data() }

// LastUpdateSuccess reports whether the latest refresh succeeded.
func (c *Coordinator) LastUpdateSuccess() bool { return c.poll.LastUpdateSuccess() }

// AddListener registers a refresh listener.
func (c *Coordinator) AddListener(fn func()) func() { return c.poll.AddListener(fn) }

// Refresh forces a refresh outside the polling cadence.
func (c *Coordinator) Refresh(ctx context.Context) error { return c.poll.Refresh(ctx) }

// Close stops polling.
func (c *Coordinator) Close() { c.poll.Close() }
