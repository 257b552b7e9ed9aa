package roborock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lash-L/hubcore/internal/poll"
)

// replayKeys are the cached attributes re-read after a transport
// recovers, before the device is marked available again.
var replayKeys = []CacheKey{CacheKeyChildLock, CacheKeyDNDTimer, CacheKeyVolume}

// DefaultScanInterval is the refresh cadence when config leaves it unset.
const DefaultScanInterval = 30 * time.Second

// Coordinator owns one vacuum's refresh cycle and transport choice.
//
// The transport is picked once, at VerifyAPI time: local when the
// vacuum answers a LAN ping, otherwise the account's cloud session.
// A vacuum that later starts answering locally stays on cloud; only an
// entry reload re-evaluates the choice.
type Coordinator struct {
	device  HomeDataDevice
	product HomeDataProduct

	localClient Client
	cloudClient Client

	mu         sync.Mutex
	api        Client
	usingCloud bool
	verified   bool
	prop       DeviceProp
	currentMap *int
	maps       map[string]int // map name -> slot flag

	poll   *poll.Coordinator[*DeviceProp]
	logger poll.Logger
}

// NewCoordinator creates a coordinator for one vacuum. local may be
// nil when the device reported no LAN address; the cloud transport is
// then used without probing.
func NewCoordinator(device HomeDataDevice, product HomeDataProduct, local, cloud Client, interval time.Duration, logger poll.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	c := &Coordinator{
		device:      device,
		product:     product,
		localClient: local,
		cloudClient: cloud,
		api:         local,
		maps:        make(map[string]int),
		logger:      logger,
	}
	if local == nil {
		c.api = cloud
		c.usingCloud = true
		c.verified = true
	}
	c.poll = poll.NewCoordinator("roborock:"+device.DUID, interval, c.update)
	c.poll.SetLogger(logger)
	return c
}

// VerifyAPI probes the local transport and falls back to cloud when it
// does not answer. The decision is made once; later calls are no-ops.
func (c *Coordinator) VerifyAPI(ctx context.Context) {
	c.mu.Lock()
	if c.verified {
		c.mu.Unlock()
		return
	}
	c.verified = true
	local := c.localClient
	c.mu.Unlock()

	if err := local.Ping(ctx); err != nil {
		c.logger.Warn("local api unreachable, falling back to cloud",
			"duid", c.device.DUID, "error", err)
		c.mu.Lock()
		c.api = c.cloudClient
		c.usingCloud = true
		c.mu.Unlock()
	}
}

// Start verifies the transport and begins polling. The first refresh
// runs synchronously; its error is returned so setup can be deferred.
func (c *Coordinator) Start(ctx context.Context) error {
	c.VerifyAPI(ctx)
	return c.poll.Start(ctx)
}

// update is the per-refresh fetch. It translates transport errors and
// missing property parts into update failures, merges the snapshot,
// and replays cached attributes when an unavailable transport recovers.
func (c *Coordinator) update(ctx context.Context) (*DeviceProp, error) {
	api := c.API()

	prop, err := api.GetProp(ctx)
	if err != nil {
		api.SetAvailable(false)
		return nil, fmt.Errorf("%w: fetching properties for %s: %v", poll.ErrUpdateFailed, c.device.DUID, err)
	}
	if prop.Status == nil || prop.Consumable == nil || prop.CleanSummary == nil {
		api.SetAvailable(false)
		return nil, fmt.Errorf("%w: incomplete properties for %s", poll.ErrUpdateFailed, c.device.DUID)
	}

	recovering := !api.IsAvailable()
	if recovering {
		if err := api.Cache().Replay(ctx, replayKeys); err != nil {
			return nil, fmt.Errorf("%w: replaying cached attributes for %s: %v", poll.ErrUpdateFailed, c.device.DUID, err)
		}
		api.SetAvailable(true)
		c.logger.Info("transport recovered", "duid", c.device.DUID, "cloud", c.UsingCloud())
	}

	c.mu.Lock()
	c.prop.Update(prop)
	if slot, ok := prop.Status.CurrentMap(); ok {
		c.currentMap = &slot
		for name, flag := range c.maps {
			if flag == slot {
				c.prop.Status.MapName = name
				break
			}
		}
	}
	merged := c.prop
	c.mu.Unlock()

	return &merged, nil
}

// GetMaps fetches the saved map slots and records their names for
// status rendering.
func (c *Coordinator) GetMaps(ctx context.Context) error {
	maps, err := c.API().GetMultiMapsList(ctx)
	if err != nil {
		return fmt.Errorf("fetching maps for %s: %w", c.device.DUID, err)
	}

	c.mu.Lock()
	for _, info := range maps.MapInfo {
		c.maps[info.Name] = info.MapFlag
	}
	c.mu.Unlock()
	return nil
}

// Maps returns the saved map names keyed to their slot flags.
func (c *Coordinator) Maps() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.maps))
	for name, flag := range c.maps {
		out[name] = flag
	}
	return out
}

// API returns the chosen transport.
func (c *Coordinator) API() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// UsingCloud reports whether the coordinator fell back to cloud.
func (c *Coordinator) UsingCloud() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usingCloud
}

// Device returns the device descriptor.
func (c *Coordinator) Device() HomeDataDevice { return c.device }

// Product returns the product descriptor.
func (c *Coordinator) Product() HomeDataProduct { return c.product }

// Data returns the last merged property snapshot.
func (c *Coordinator) Data() (*DeviceProp, bool) { return c.poll.Data() }

// LastUpdateSuccess reports whether the latest refresh succeeded.
func (c *Coordinator) LastUpdateSuccess() bool { return c.poll.LastUpdateSuccess() }

// AddListener registers a refresh listener.
func (c *Coordinator) AddListener(fn func()) func() { return c.poll.AddListener(fn) }

// Refresh forces a refresh outside the polling cadence.
func (c *Coordinator) Refresh(ctx context.Context) error { return c.poll.Refresh(ctx) }

// CurrentMap returns the selected map slot from the last refresh.
func (c *Coordinator) CurrentMap() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentMap == nil {
		return 0, false
	}
	return *c.currentMap, true
}

// Release stops polling and closes both transports.
func (c *Coordinator) Release() {
	c.poll.Close()
	if c.localClient != nil {
		c.localClient.Close()
	}
	if c.cloudClient != nil {
		c.cloudClient.Close()
	}
}
