package oralb

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Lash-L/hubcore/internal/flow"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

const stepConfirm = "confirm"

// ConfigFlow pairs one brush by BLE address: the client supplies the
// discovered address, then confirms.
type ConfigFlow struct {
	address string
}

// NewFlowFactory returns the pairing flow factory.
func NewFlowFactory() flow.Factory {
	return func() flow.Flow { return &ConfigFlow{} }
}

func addressSchema() []flow.Field {
	return []flow.Field{{Name: "address", Required: true}}
}

// Step advances the flow.
func (f *ConfigFlow) Step(ctx context.Context, fc *flow.Context, stepID string, input map[string]string) flow.Result {
	switch stepID {
	case flow.StepUser:
		return f.stepUser(ctx, fc, input)
	case stepConfirm:
		return f.stepConfirm(ctx, fc, input)
	default:
		return fc.Abort("unknown_step")
	}
}

func (f *ConfigFlow) stepUser(ctx context.Context, fc *flow.Context, input map[string]string) flow.Result {
	if input == nil {
		return fc.ShowForm(flow.StepUser, addressSchema(), nil)
	}

	address := strings.ToUpper(strings.TrimSpace(input["address"]))
	if !macPattern.MatchString(address) {
		return fc.ShowForm(flow.StepUser, addressSchema(), map[string]string{"address": "invalid_address"})
	}

	if err := fc.SetUniqueID(ctx, address); err != nil {
		if errors.Is(err, flow.ErrAlreadyConfigured) {
			return fc.Abort(flow.ReasonAlreadyConfigured)
		}
		return fc.ShowForm(flow.StepUser, addressSchema(), map[string]string{"base": "unknown"})
	}

	f.address = address
	return fc.ShowForm(stepConfirm, nil, nil)
}

func (f *ConfigFlow) stepConfirm(ctx context.Context, fc *flow.Context, input map[string]string) flow.Result {
	if f.address == "" {
		return fc.ShowForm(flow.StepUser, addressSchema(), nil)
	}
	if input == nil {
		return fc.ShowForm(stepConfirm, nil, nil)
	}

	return fc.CreateEntry(ctx, "Oral-B "+f.address, map[string]any{
		"address": f.address,
	})
}
