package roborock

import "context"

// Device command methods.
const (
	MethodGetStatus        = "get_status"
	MethodGetConsumable    = "get_consumable"
	MethodGetCleanSummary  = "get_clean_summary"
	MethodGetNetworkInfo   = "get_network_info"
	MethodGetMultiMapsList = "get_multi_maps_list"
	MethodAppStart         = "app_start"
	MethodAppStop          = "app_stop"
	MethodAppPause         = "app_pause"
	MethodAppCharge        = "app_charge"
	MethodSetFanSpeed      = "set_custom_mode"
	MethodGetChildLock     = "get_child_lock_status"
	MethodGetDNDTimer      = "get_dnd_timer"
	MethodGetVolume        = "get_sound_volume"
	MethodGetFlowLED       = "get_flow_led_status"
)

// Client is one device transport: the LAN connection or the account's
// cloud session scoped to a device.
//
// Availability is a flag the coordinator drives, not a live probe: the
// coordinator marks the client unavailable on a failed refresh and
// available again after cache replay.
type Client interface {
	// Ping checks the transport end to end.
	Ping(ctx context.Context) error

	// GetProp fetches status, consumables, and the clean summary.
	// Individual parts may be nil when the device omits them.
	GetProp(ctx context.Context) (*DeviceProp, error)

	// GetMultiMapsList fetches the saved map slots.
	GetMultiMapsList(ctx context.Context) (*MultiMapsList, error)

	// SendCommand sends a raw device command and decodes the reply into
	// result when it is non-nil.
	SendCommand(ctx context.Context, method string, params any, result any) error

	// Cache returns the client's attribute cache.
	Cache() *AttributeCache

	// IsAvailable reports the coordinator-driven availability flag.
	IsAvailable() bool

	// SetAvailable sets the availability flag.
	SetAvailable(available bool)

	// Close releases the transport. For the cloud client this drops a
	// reference on the shared session rather than disconnecting it.
	Close() error
}

// registerStandardCache wires the slow-changing attributes into a
// client's cache, each refreshed by its own device command.
func registerStandardCache(c Client) {
	type pair struct {
		key    CacheKey
		method string
	}
	for _, p := range []pair{
		{CacheKeyChildLock, MethodGetChildLock},
		{CacheKeyDNDTimer, MethodGetDNDTimer},
		{CacheKeyVolume, MethodGetVolume},
		{CacheKeyFlowLED, MethodGetFlowLED},
	} {
		method := p.method
		c.Cache().Register(p.key, func(ctx context.Context) (any, error) {
			var value any
			if err := c.SendCommand(ctx, method, nil, &value); err != nil {
				return nil, err
			}
			return value, nil
		})
	}
}

// getProp assembles a DeviceProp from the three property commands over
// any transport. Shared by the local and cloud clients. Parts the
// device answers with a null result stay nil; the coordinator decides
// what that means.
func getProp(ctx context.Context, c Client) (*DeviceProp, error) {
	var status *Status
	if err := c.SendCommand(ctx, MethodGetStatus, nil, &status); err != nil {
		return nil, err
	}

	var consumable *Consumable
	if err := c.SendCommand(ctx, MethodGetConsumable, nil, &consumable); err != nil {
		return nil, err
	}

	var summary *CleanSummary
	if err := c.SendCommand(ctx, MethodGetCleanSummary, nil, &summary); err != nil {
		return nil, err
	}

	return &DeviceProp{Status: status, Consumable: consumable, CleanSummary: summary}, nil
}
