package roborock

import (
	"context"
	"fmt"
	"time"

	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/entry"
	"github.com/Lash-L/hubcore/internal/poll"
)

// Domain is the integration domain.
const Domain = "roborock"

// Options tunes the integration from hub config.
type Options struct {
	LocalPort    int
	ScanInterval time.Duration
}

// Integration wires paired Roborock accounts into the hub: one cloud
// session and one coordinator per vacuum for each config entry.
type Integration struct {
	registry *entity.Registry
	opts     Options
	logger   poll.Logger
}

// New creates the integration.
func New(registry *entity.Registry, opts Options, logger poll.Logger) *Integration {
	return &Integration{registry: registry, opts: opts, logger: logger}
}

// Domain returns the integration domain.
func (i *Integration) Domain() string { return Domain }

// Setup loads one account entry: fetches home data, builds a transport
// pair per vacuum, starts coordinators, and registers entities.
// Unreachable cloud surfaces as a setup retry.
func (i *Integration) Setup(ctx context.Context, e *entry.Entry) (entry.UnloadFunc, error) {
	user, err := userDataFromEntry(mapValue(e.Data, "user_data"))
	if err != nil {
		return nil, fmt.Errorf("decoding stored credentials: %w", err)
	}

	account := NewAccountClient(e.DataString("base_url"))
	home, err := account.GetHomeData(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching home data: %v", entry.ErrSetupRetry, err)
	}
	if len(home.Devices) == 0 {
		return nil, fmt.Errorf("%w for entry %s", ErrNoDevices, e.ID)
	}

	session := NewCloudSession(user)
	if err := session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: connecting cloud session: %v", entry.ErrSetupRetry, err)
	}

	coords := make([]*Coordinator, 0, len(home.Devices))
	cleanup := func() {
		for _, c := range coords {
			c.Release()
		}
	}

	for _, device := range home.Devices {
		cloud := NewCloudClient(session, device.DUID)

		// The LAN address comes over cloud; without it the coordinator
		// runs cloud-only from the start.
		var local Client
		if info, nerr := cloud.NetworkInfo(ctx); nerr == nil && info.IP != "" {
			local = NewLocalClient(info.IP, i.opts.LocalPort)
		} else if nerr != nil {
			i.logger.Debug("network info unavailable", "duid", device.DUID, "error", nerr)
		}

		coord := NewCoordinator(device, home.Product(device), local, cloud, i.opts.ScanInterval, i.logger)
		if err := coord.Start(ctx); err != nil {
			coord.Release()
			cleanup()
			return nil, fmt.Errorf("%w: starting coordinator for %s: %v", entry.ErrSetupRetry, device.DUID, err)
		}
		coords = append(coords, coord)

		if err := coord.GetMaps(ctx); err != nil {
			i.logger.Debug("map list unavailable", "duid", device.DUID, "error", err)
		}
	}

	for _, coord := range coords {
		entities := []entity.Entity{NewVacuumEntity(coord), NewCleanSummarySensor(coord)}
		entities = append(entities, NewConsumableSensors(coord)...)

		if err := i.registry.Add(Domain, e.ID, entities...); err != nil {
			cleanup()
			i.registry.RemoveEntry(e.ID)
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
	}

	entryID := e.ID
	return func(context.Context) error {
		i.registry.RemoveEntry(entryID)
		cleanup()
		return nil
	}, nil
}

// mapValue extracts a nested map from entry data.
func mapValue(data map[string]any, key string) map[string]any {
	if m, ok := data[key].(map[string]any); ok {
		return m
	}
	return nil
}
