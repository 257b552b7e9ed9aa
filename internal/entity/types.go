package entity

import (
	"context"
	"time"
)

// DeviceInfo describes the physical device an entity belongs to.
// Entities from one device share identifiers so clients can group them.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	HWVersion    string   `json:"hw_version,omitempty"`
}

// State is one entity's published condition: a primary value plus
// free-form attributes.
type State struct {
	Value      string         `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Entity is one observable aspect of a device.
//
// Implementations derive state from a coordinator and must be safe for
// concurrent reads; the registry calls them from transport goroutines.
type Entity interface {
	// UniqueID returns the stable identifier, unique across the hub
	// ("roborock_abc123_vacuum", "southernco_12345_total_kwh").
	UniqueID() string

	// Name returns the human-readable name.
	Name() string

	// DeviceInfo returns the owning device's description.
	DeviceInfo() DeviceInfo

	// Available reports whether the backing data source is delivering.
	Available() bool

	// State returns the current state.
	State() State
}

// Commander is implemented by entities that accept commands (start a
// clean cycle, return to dock). Entities without it are read-only.
type Commander interface {
	// Command executes a named command. Unknown names return
	// ErrUnknownCommand; device rejections wrap ErrCommandFailed.
	Command(ctx context.Context, name string, args map[string]any) error
}

// Snapshot is the wire representation of one registered entity.
type Snapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Domain      string     `json:"domain"`
	EntryID     string     `json:"entry_id"`
	State       State      `json:"state"`
	Available   bool       `json:"available"`
	Commandable bool       `json:"commandable"`
	Device      DeviceInfo `json:"device"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
