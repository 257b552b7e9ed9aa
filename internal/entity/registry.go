package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lash-L/hubcore/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatePublisher publishes retained state documents. Satisfied by the
// MQTT client; nil disables MQTT publication.
type StatePublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Broadcaster pushes state changes to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// MetricWriter records numeric entity values for history.
type MetricWriter interface {
	WriteEntityMetric(entityID string, field string, value float64)
}

// ChannelStateChanged is the WebSocket channel for entity updates.
const ChannelStateChanged = "entity.state_changed"

type record struct {
	entity    Entity
	domain    string
	entryID   string
	updatedAt time.Time
	unlisten  func()
}

// Registry tracks all registered entities and publishes their state.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.Mutex
	records map[string]*record

	publisher StatePublisher
	broadcast Broadcaster
	metrics   MetricWriter
	topics    mqtt.Topics
	logger    Logger
}

// NewRegistry creates an entity registry. Any transport may be nil;
// publication to it is skipped.
func NewRegistry(publisher StatePublisher, broadcast Broadcaster, metrics MetricWriter) *Registry {
	return &Registry{
		records:   make(map[string]*record),
		publisher: publisher,
		broadcast: broadcast,
		metrics:   metrics,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add registers entities belonging to one config entry and publishes
// their initial state. Listener wiring is the caller's job: the
// integration subscribes each entity's coordinator and calls Update.
func (r *Registry) Add(domain, entryID string, entities ...Entity) error {
	r.mu.Lock()
	for _, e := range entities {
		if _, exists := r.records[e.UniqueID()]; exists {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.UniqueID())
		}
		r.records[e.UniqueID()] = &record{
			entity:    e,
			domain:    domain,
			entryID:   entryID,
			updatedAt: time.Now(),
		}
	}
	r.mu.Unlock()

	for _, e := range entities {
		r.publish(e.UniqueID())
	}
	r.logger.Debug("entities registered", "domain", domain, "entry_id", entryID, "count", len(entities))
	return nil
}

// Bind attaches a coordinator-removal hook to a registered entity so
// RemoveEntry can unsubscribe it.
func (r *Registry) Bind(entityID string, unlisten func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[entityID]; ok {
		rec.unlisten = unlisten
	}
}

// RemoveEntry unregisters every entity belonging to a config entry and
// clears their retained state.
func (r *Registry) RemoveEntry(entryID string) {
	r.mu.Lock()
	var removed []string
	for id, rec := range r.records {
		if rec.entryID != entryID {
			continue
		}
		if rec.unlisten != nil {
			rec.unlisten()
		}
		delete(r.records, id)
		removed = append(removed, id)
	}
	r.mu.Unlock()

	for _, id := range removed {
		if r.publisher != nil {
			// Empty retained payload clears the topic on the broker.
			if err := r.publisher.PublishRetained(r.topics.EntityState(id), nil); err != nil {
				r.logger.Warn("clearing retained state failed", "entity_id", id, "error", err)
			}
		}
	}
	if len(removed) > 0 {
		r.logger.Debug("entities removed", "entry_id", entryID, "count", len(removed))
	}
}

// Update re-reads an entity's state and publishes it. Integrations
// call this from coordinator listeners.
func (r *Registry) Update(entityID string) {
	r.mu.Lock()
	rec, ok := r.records[entityID]
	if ok {
		rec.updatedAt = time.Now()
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.publish(entityID)
}

// Get returns a snapshot of one entity.
func (r *Registry) Get(entityID string) (Snapshot, error) {
	r.mu.Lock()
	rec, ok := r.records[entityID]
	if !ok {
		r.mu.Unlock()
		return Snapshot{}, ErrEntityNotFound
	}
	snap := r.snapshotLocked(rec)
	r.mu.Unlock()
	return snap, nil
}

// List returns snapshots of all entities, sorted by ID.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	snaps := make([]Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		snaps = append(snaps, r.snapshotLocked(rec))
	}
	r.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// Command routes a command to an entity.
func (r *Registry) Command(ctx context.Context, entityID, name string, args map[string]any) error {
	r.mu.Lock()
	rec, ok := r.records[entityID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	cmd, ok := rec.entity.(Commander)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCommandable, entityID)
	}

	if err := cmd.Command(ctx, name, args); err != nil {
		return err
	}
	r.Update(entityID)
	return nil
}

// publish sends the entity's current state to every wired transport.
func (r *Registry) publish(entityID string) {
	r.mu.Lock()
	rec, ok := r.records[entityID]
	if !ok {
		r.mu.Unlock()
		return
	}
	snap := r.snapshotLocked(rec)
	r.mu.Unlock()

	if r.publisher != nil {
		payload, err := json.Marshal(snap)
		if err != nil {
			r.logger.Error("marshalling entity state", "entity_id", entityID, "error", err)
		} else if err := r.publisher.PublishRetained(r.topics.EntityState(entityID), payload); err != nil {
			r.logger.Warn("publishing entity state failed", "entity_id", entityID, "error", err)
		}
	}

	if r.broadcast != nil {
		r.broadcast.Broadcast(ChannelStateChanged, snap)
	}

	if r.metrics != nil && snap.Available {
		r.writeMetrics(snap)
	}
}

// writeMetrics records the numeric parts of a state for history.
func (r *Registry) writeMetrics(snap Snapshot) {
	if v, ok := toFloat(snap.State.Value); ok {
		r.metrics.WriteEntityMetric(snap.ID, "value", v)
	}
	for field, raw := range snap.State.Attributes {
		if v, ok := toFloat(raw); ok {
			r.metrics.WriteEntityMetric(snap.ID, field, v)
		}
	}
}

func (r *Registry) snapshotLocked(rec *record) Snapshot {
	_, commandable := rec.entity.(Commander)
	return Snapshot{
		ID:          rec.entity.UniqueID(),
		Name:        rec.entity.Name(),
		Domain:      rec.domain,
		EntryID:     rec.entryID,
		State:       rec.entity.State(),
		Available:   rec.entity.Available(),
		Commandable: commandable,
		Device:      rec.entity.DeviceInfo(),
		UpdatedAt:   rec.updatedAt,
	}
}

// toFloat extracts a float from the value types JSON and integrations
// produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil && isNumeric(n) {
			return f, true
		}
	}
	return 0, false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '-' && i == 0:
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
