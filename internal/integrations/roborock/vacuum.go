package roborock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Lash-L/hubcore/internal/entity"
)

// Vacuum commands.
const (
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandPause        = "pause"
	CommandReturnToDock = "return_to_dock"
	CommandSetFanSpeed  = "set_fan_speed"
)

// commandMethods maps hub commands to device methods.
var commandMethods = map[string]string{
	CommandStart:        MethodAppStart,
	CommandStop:         MethodAppStop,
	CommandPause:        MethodAppPause,
	CommandReturnToDock: MethodAppCharge,
}

// VacuumEntity is the vacuum itself: state, battery, fan speed, and
// the cleaning commands.
type VacuumEntity struct {
	coord *Coordinator
}

// NewVacuumEntity creates the vacuum entity over its coordinator.
func NewVacuumEntity(coord *Coordinator) *VacuumEntity {
	return &VacuumEntity{coord: coord}
}

func (v *VacuumEntity) UniqueID() string {
	return "roborock_" + v.coord.Device().DUID + "_vacuum"
}

func (v *VacuumEntity) Name() string { return v.coord.Device().Name }

func (v *VacuumEntity) DeviceInfo() entity.DeviceInfo {
	return deviceInfo(v.coord)
}

func (v *VacuumEntity) Available() bool {
	_, hasData := v.coord.Data()
	return v.coord.LastUpdateSuccess() && hasData
}

func (v *VacuumEntity) State() entity.State {
	prop, ok := v.coord.Data()
	if !ok || prop.Status == nil {
		return entity.State{Value: "unknown"}
	}

	s := prop.Status
	attrs := map[string]any{
		"battery":    s.Battery,
		"fan_power":  s.FanPower,
		"clean_time": s.CleanTime,
		"clean_area": s.CleanArea,
		"error_code": s.ErrorCode,
	}
	if slot, ok := v.coord.CurrentMap(); ok {
		attrs["current_map"] = slot
		if s.MapName != "" {
			attrs["map_name"] = s.MapName
		}
	}
	return entity.State{Value: s.StateName(), Attributes: attrs}
}

// Command translates hub commands into device methods. Successful
// commands trigger an immediate refresh so entity state catches up
// without waiting for the next poll.
func (v *VacuumEntity) Command(ctx context.Context, name string, args map[string]any) error {
	api := v.coord.API()

	var err error
	switch {
	case commandMethods[name] != "":
		err = api.SendCommand(ctx, commandMethods[name], nil, nil)
	case name == CommandSetFanSpeed:
		speed, serr := fanSpeedArg(args)
		if serr != nil {
			return serr
		}
		err = api.SendCommand(ctx, MethodSetFanSpeed, []int{speed}, nil)
	default:
		return fmt.Errorf("%w: %s", entity.ErrUnknownCommand, name)
	}

	if err != nil {
		return fmt.Errorf("%w: %s on %s: %v", entity.ErrCommandFailed, name, v.coord.Device().DUID, err)
	}

	if rerr := v.coord.Refresh(ctx); rerr != nil {
		// Command succeeded; a failed refresh only delays the state update
		return nil
	}
	return nil
}

func fanSpeedArg(args map[string]any) (int, error) {
	raw, ok := args["speed"]
	if !ok {
		return 0, fmt.Errorf("%w: set_fan_speed requires speed", entity.ErrUnknownCommand)
	}
	switch n := raw.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		v, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: bad speed %q", entity.ErrUnknownCommand, n)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: bad speed type", entity.ErrUnknownCommand)
	}
}

// deviceInfo builds the shared device descriptor for all of one
// vacuum's entities.
func deviceInfo(coord *Coordinator) entity.DeviceInfo {
	d := coord.Device()
	p := coord.Product()
	return entity.DeviceInfo{
		Identifiers:  []string{"roborock:" + d.DUID},
		Manufacturer: "Roborock",
		Model:        p.Model,
		Name:         d.Name,
		SWVersion:    d.FirmwareVersion,
	}
}
