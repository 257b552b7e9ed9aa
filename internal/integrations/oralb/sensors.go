package oralb

import (
	"fmt"
	"strings"

	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/poll"
)

// brushSensorKind maps one decoded field to a sensor.
type brushSensorKind struct {
	id    string
	name  string
	state func(BrushState) entity.State
}

var brushSensorKinds = []brushSensorKind{
	{
		id:   "state",
		name: "Toothbrush State",
		state: func(b BrushState) entity.State {
			return entity.State{Value: b.State, Attributes: map[string]any{
				"sector":        b.Sector,
				"high_pressure": b.HighPressure,
			}}
		},
	},
	{
		id:   "brush_time",
		name: "Brush Time",
		state: func(b BrushState) entity.State {
			return entity.State{
				Value:      fmt.Sprintf("%d", int(b.BrushTime.Seconds())),
				Attributes: map[string]any{"unit": "s"},
			}
		},
	},
	{
		id:   "mode",
		name: "Brush Mode",
		state: func(b BrushState) entity.State {
			return entity.State{Value: b.Mode}
		},
	},
	{
		id:   "pressure",
		name: "Brush Pressure",
		state: func(b BrushState) entity.State {
			return entity.State{Value: fmt.Sprintf("%d", b.Pressure)}
		},
	},
}

// BrushSensor renders one decoded advertisement field.
type BrushSensor struct {
	coord   *poll.Passive[BrushState]
	address string
	kind    brushSensorKind
}

// NewBrushSensors creates the sensor set for one brush.
func NewBrushSensors(coord *poll.Passive[BrushState], address string) []entity.Entity {
	out := make([]entity.Entity, 0, len(brushSensorKinds))
	for _, kind := range brushSensorKinds {
		out = append(out, &BrushSensor{coord: coord, address: address, kind: kind})
	}
	return out
}

func (s *BrushSensor) UniqueID() string {
	return "oralb_" + addressID(s.address) + "_" + s.kind.id
}

func (s *BrushSensor) Name() string { return s.kind.name }

func (s *BrushSensor) DeviceInfo() entity.DeviceInfo {
	return entity.DeviceInfo{
		Identifiers:  []string{"oralb:" + s.address},
		Manufacturer: "Oral-B",
		Name:         "Oral-B Toothbrush",
	}
}

func (s *BrushSensor) Available() bool {
	_, ok := s.coord.Data()
	return ok && s.coord.Available()
}

func (s *BrushSensor) State() entity.State {
	b, ok := s.coord.Data()
	if !ok {
		return entity.State{Value: "unknown"}
	}
	return s.kind.state(b)
}

// addressID flattens a MAC address into an identifier fragment.
func addressID(address string) string {
	return strings.ToLower(strings.ReplaceAll(address, ":", ""))
}
