package oralb

import (
	"errors"
	"fmt"
	"time"
)

// CompanyID is Procter & Gamble's Bluetooth SIG identifier.
const CompanyID = 0x00DC

// ErrFrameTooShort indicates a manufacturer-data frame shorter than
// the brush's fixed layout.
var ErrFrameTooShort = errors.New("advertisement frame too short")

// frameLen is the brush's manufacturer-data payload length.
const frameLen = 9

// Brush run states, by the state byte.
var brushStates = map[byte]string{
	0:   "unknown",
	1:   "initializing",
	2:   "idle",
	3:   "running",
	4:   "charging",
	5:   "setup",
	6:   "flight_menu",
	113: "final_test",
	114: "pcb_test",
	115: "sleeping",
	116: "transport",
}

// Brushing modes, by the mode byte.
var brushModes = map[byte]string{
	0: "off",
	1: "daily_clean",
	2: "sensitive",
	3: "massage",
	4: "whitening",
	5: "deep_clean",
	6: "tongue_cleaning",
	7: "turbo",
}

// sectorName renders the sector byte.
func sectorName(b byte) string {
	switch {
	case b >= 1 && b <= 8:
		return fmt.Sprintf("sector_%d", b)
	case b == 254:
		return "last_sector"
	default:
		return "no_sector"
	}
}

// BrushState is one decoded advertisement.
type BrushState struct {
	Address      string
	State        string
	Pressure     int
	BrushTime    time.Duration
	Mode         string
	Sector       string
	HighPressure bool
	SeenAt       time.Time
}

// Running reports whether the brush is actively brushing.
func (b BrushState) Running() bool { return b.State == "running" }

// ParseAdvertisement decodes one manufacturer-data frame.
//
// Layout: [0:3] protocol/type/version, [3] state, [4] pressure,
// [5] minutes brushed, [6] seconds brushed, [7] mode, [8] sector.
func ParseAdvertisement(address string, data []byte) (BrushState, error) {
	if len(data) < frameLen {
		return BrushState{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}

	state, ok := brushStates[data[3]]
	if !ok {
		state = "unknown"
	}
	mode, ok := brushModes[data[7]]
	if !ok {
		mode = "unknown"
	}

	return BrushState{
		Address:      address,
		State:        state,
		Pressure:     int(data[4]),
		BrushTime:    time.Duration(data[5])*time.Minute + time.Duration(data[6])*time.Second,
		Mode:         mode,
		Sector:       sectorName(data[8]),
		HighPressure: data[4] > 0xb0,
		SeenAt:       time.Now(),
	}, nil
}
