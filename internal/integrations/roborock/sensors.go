package roborock

import (
	"fmt"

	"github.com/Lash-L/hubcore/internal/entity"
)

// consumableKind selects which wear counter a sensor renders.
type consumableKind struct {
	id    string
	name  string
	hours func(*Consumable) float64
}

var consumableKinds = []consumableKind{
	{"main_brush_left", "Main Brush Left", (*Consumable).MainBrushLeftHours},
	{"side_brush_left", "Side Brush Left", (*Consumable).SideBrushLeftHours},
	{"filter_left", "Filter Left", (*Consumable).FilterLeftHours},
	{"sensor_dirty_left", "Sensor Time Left", (*Consumable).SensorLeftHours},
}

// ConsumableSensor reports remaining life of one consumable, in hours.
type ConsumableSensor struct {
	coord *Coordinator
	kind  consumableKind
}

// NewConsumableSensors creates the full consumable sensor set for one
// vacuum.
func NewConsumableSensors(coord *Coordinator) []entity.Entity {
	out := make([]entity.Entity, 0, len(consumableKinds))
	for _, kind := range consumableKinds {
		out = append(out, &ConsumableSensor{coord: coord, kind: kind})
	}
	return out
}

func (s *ConsumableSensor) UniqueID() string {
	return "roborock_" + s.coord.Device().DUID + "_" + s.kind.id
}

func (s *ConsumableSensor) Name() string {
	return s.coord.Device().Name + " " + s.kind.name
}

func (s *ConsumableSensor) DeviceInfo() entity.DeviceInfo { return deviceInfo(s.coord) }

func (s *ConsumableSensor) Available() bool {
	prop, ok := s.coord.Data()
	return s.coord.LastUpdateSuccess() && ok && prop.Consumable != nil
}

func (s *ConsumableSensor) State() entity.State {
	prop, ok := s.coord.Data()
	if !ok || prop.Consumable == nil {
		return entity.State{Value: "unknown"}
	}
	return entity.State{
		Value:      fmt.Sprintf("%.1f", s.kind.hours(prop.Consumable)),
		Attributes: map[string]any{"unit": "h"},
	}
}

// CleanSummarySensor reports the lifetime cleaning totals.
type CleanSummarySensor struct {
	coord *Coordinator
}

// NewCleanSummarySensor creates the clean-summary sensor for one vacuum.
func NewCleanSummarySensor(coord *Coordinator) *CleanSummarySensor {
	return &CleanSummarySensor{coord: coord}
}

func (s *CleanSummarySensor) UniqueID() string {
	return "roborock_" + s.coord.Device().DUID + "_clean_summary"
}

func (s *CleanSummarySensor) Name() string {
	return s.coord.Device().Name + " Cleaning Total"
}

func (s *CleanSummarySensor) DeviceInfo() entity.DeviceInfo { return deviceInfo(s.coord) }

func (s *CleanSummarySensor) Available() bool {
	prop, ok := s.coord.Data()
	return s.coord.LastUpdateSuccess() && ok && prop.CleanSummary != nil
}

func (s *CleanSummarySensor) State() entity.State {
	prop, ok := s.coord.Data()
	if !ok || prop.CleanSummary == nil {
		return entity.State{Value: "unknown"}
	}
	cs := prop.CleanSummary
	return entity.State{
		Value: fmt.Sprintf("%d", cs.CleanCount),
		Attributes: map[string]any{
			"total_clean_time": cs.CleanTime,
			"total_clean_area": cs.CleanArea,
		},
	}
}
