package southernco

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/entry"
	"github.com/Lash-L/hubcore/internal/poll"
)

// Domain is the integration domain.
const Domain = "southern_company"

// Options tunes the integration from hub config.
type Options struct {
	BaseURL      string
	ScanInterval time.Duration
}

// Integration wires utility logins into the hub: one coordinator per
// config entry covering every account on the login.
type Integration struct {
	registry *entity.Registry
	sink     StatisticsSink
	opts     Options
	logger   poll.Logger
}

// New creates the integration. sink may be nil when InfluxDB is
// disabled.
func New(registry *entity.Registry, sink StatisticsSink, opts Options, logger poll.Logger) *Integration {
	return &Integration{registry: registry, sink: sink, opts: opts, logger: logger}
}

// Domain returns the integration domain.
func (i *Integration) Domain() string { return Domain }

// Setup loads one login entry: authenticates, discovers accounts,
// starts the coordinator, and registers the per-account sensors.
// Transport failures defer setup; rejected credentials fail it.
func (i *Integration) Setup(ctx context.Context, e *entry.Entry) (entry.UnloadFunc, error) {
	username := e.DataString("username")
	password := e.DataString("password")
	if username == "" || password == "" {
		return nil, fmt.Errorf("entry %s has no stored credentials", e.ID)
	}

	client := NewClient(i.opts.BaseURL, username, password)
	coord := NewCoordinator(client, i.sink, i.opts.ScanInterval, i.logger)

	if err := coord.Start(ctx); err != nil {
		coord.Close()
		if errors.Is(err, ErrAuth) || errors.Is(err, poll.ErrAuthFailed) {
			return nil, fmt.Errorf("credentials rejected for %s: %w", username, err)
		}
		return nil, fmt.Errorf("%w: starting usage coordinator: %v", entry.ErrSetupRetry, err)
	}

	var entities []entity.Entity
	for _, acct := range coord.Accounts() {
		entities = append(entities, NewAccountSensors(coord, acct)...)
	}
	if len(entities) == 0 {
		coord.Close()
		return nil, fmt.Errorf("login %s has no accounts", username)
	}

	if err := i.registry.Add(Domain, e.ID, entities...); err != nil {
		coord.Close()
		return nil, fmt.Errorf("registering entities: %w", err)
	}

	ids := make([]string, len(entities))
	for n, ent := range entities {
		ids[n] = ent.UniqueID()
	}
	remove := coord.AddListener(func() {
		for _, id := range ids {
			i.registry.Update(id)
		}
	})
	i.registry.Bind(ids[0], remove)

	entryID := e.ID
	return func(context.Context) error {
		i.registry.RemoveEntry(entryID)
		coord.Close()
		return nil
	}, nil
}
