package entry

import "time"

// State is the runtime lifecycle state of a config entry.
// State is not persisted; every entry starts not_loaded on hub restart.
type State string

// Lifecycle states.
const (
	StateNotLoaded  State = "not_loaded"
	StateLoaded     State = "loaded"
	StateSetupError State = "setup_error"
	StateSetupRetry State = "setup_retry"
)

// Entry is one persisted pairing result.
type Entry struct {
	ID       string         `json:"id"`
	Domain   string         `json:"domain"`
	Title    string         `json:"title"`
	UniqueID string         `json:"unique_id"`
	Data     map[string]any `json:"data"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataString returns a string value from the entry data map.
// Missing or non-string values return "".
func (e *Entry) DataString(key string) string {
	v, _ := e.Data[key].(string)
	return v
}

// Snapshot is an entry plus its runtime state, for API listings.
type Snapshot struct {
	Entry
	State State `json:"state"`
}
