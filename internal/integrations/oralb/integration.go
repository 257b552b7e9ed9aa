package oralb

import (
	"context"
	"fmt"
	"time"

	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/entry"
	"github.com/Lash-L/hubcore/internal/poll"
)

// Domain is the integration domain.
const Domain = "oralb"

// unavailableAfter is how long without an advertisement before the
// brush is considered out of range.
const unavailableAfter = 5 * time.Minute

// Integration wires toothbrushes into the hub: one passive coordinator
// per config entry, fed by the BLE advertisement source.
type Integration struct {
	registry *entity.Registry
	source   AdvertisementSource
	logger   poll.Logger
}

// New creates the integration.
func New(registry *entity.Registry, source AdvertisementSource, logger poll.Logger) *Integration {
	return &Integration{registry: registry, source: source, logger: logger}
}

// Domain returns the integration domain.
func (i *Integration) Domain() string { return Domain }

// Setup loads one brush entry. Sensors subscribe to the coordinator
// before it starts, so the first advertisement reaches every one of
// them. A missing scanner surfaces as a setup retry.
func (i *Integration) Setup(ctx context.Context, e *entry.Entry) (entry.UnloadFunc, error) {
	address := e.DataString("address")
	if address == "" {
		return nil, fmt.Errorf("entry %s has no address", e.ID)
	}

	coord := poll.NewPassive[BrushState]()
	watchCtx, stopWatch := context.WithCancel(context.Background())

	lastSeen := make(chan struct{}, 1)
	cancelSub, err := i.source.Subscribe(watchCtx, address, func(adv Advertisement) {
		if adv.CompanyID != CompanyID {
			return
		}
		state, perr := ParseAdvertisement(adv.Address, adv.ManufacturerData)
		if perr != nil {
			i.logger.Debug("undecodable advertisement", "address", adv.Address, "error", perr)
			return
		}
		coord.Set(state)
		select {
		case lastSeen <- struct{}{}:
		default:
		}
	})
	if err != nil {
		stopWatch()
		return nil, fmt.Errorf("%w: subscribing scanner for %s: %v", entry.ErrSetupRetry, address, err)
	}

	entities := NewBrushSensors(coord, address)
	if err := i.registry.Add(Domain, e.ID, entities...); err != nil {
		cancelSub()
		stopWatch()
		return nil, fmt.Errorf("registering entities: %w", err)
	}

	ids := make([]string, len(entities))
	for n, ent := range entities {
		ids[n] = ent.UniqueID()
	}
	removeListener := coord.AddListener(func() {
		for _, id := range ids {
			i.registry.Update(id)
		}
	})
	i.registry.Bind(ids[0], removeListener)

	// Everything is subscribed; release buffered updates.
	coord.Start()

	go i.watchTimeout(watchCtx, coord, address, lastSeen)

	entryID := e.ID
	return func(context.Context) error {
		i.registry.RemoveEntry(entryID)
		cancelSub()
		stopWatch()
		return nil
	}, nil
}

// watchTimeout marks the brush unavailable when advertisements stop.
func (i *Integration) watchTimeout(ctx context.Context, coord *poll.Passive[BrushState], address string, seen <-chan struct{}) {
	timer := time.NewTimer(unavailableAfter)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-seen:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(unavailableAfter)
		case <-timer.C:
			coord.SetUnavailable(fmt.Errorf("no advertisement from %s in %s", address, unavailableAfter))
			timer.Reset(unavailableAfter)
		}
	}
}
