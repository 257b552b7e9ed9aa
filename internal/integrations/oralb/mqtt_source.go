package oralb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Lash-L/hubcore/internal/infrastructure/mqtt"
	"github.com/Lash-L/hubcore/internal/poll"
)

// Bus is the slice of the MQTT client the source uses.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// wireAdvertisement is the JSON frame scanner proxies publish.
// ManufacturerData arrives base64-encoded.
type wireAdvertisement struct {
	Address          string `json:"address"`
	CompanyID        uint16 `json:"company_id"`
	ManufacturerData []byte `json:"manufacturer_data"`
}

// MQTTSource delivers BLE advertisements relayed over the MQTT bus by
// scanner proxies (ESP32 gateways, a hub-local scanner service).
//
// One bus subscription serves every brush; it is created when the
// first subscriber appears and dropped when the last one cancels.
type MQTTSource struct {
	bus    Bus
	logger poll.Logger

	mu      sync.Mutex
	nextID  int
	subs    map[string]map[int]func(Advertisement) // upper-case address -> subscriber set
	started bool
}

// NewMQTTSource creates the source. It does not touch the bus until
// the first Subscribe call.
func NewMQTTSource(bus Bus, logger poll.Logger) *MQTTSource {
	return &MQTTSource{
		bus:    bus,
		logger: logger,
		subs:   make(map[string]map[int]func(Advertisement)),
	}
}

// Subscribe registers a callback for advertisements from one address.
func (s *MQTTSource) Subscribe(_ context.Context, address string, fn func(Advertisement)) (func(), error) {
	addr := strings.ToUpper(address)

	s.mu.Lock()
	if !s.started {
		if err := s.bus.Subscribe(mqtt.Topics{}.BLEAdvertisements(), 0, s.handleFrame); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("subscribing to advertisement topic: %w", err)
		}
		s.started = true
	}

	id := s.nextID
	s.nextID++
	if s.subs[addr] == nil {
		s.subs[addr] = make(map[int]func(Advertisement))
	}
	s.subs[addr][id] = fn
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.subs[addr], id)
		if len(s.subs[addr]) == 0 {
			delete(s.subs, addr)
		}
		if len(s.subs) == 0 && s.started {
			if err := s.bus.Unsubscribe(mqtt.Topics{}.BLEAdvertisements()); err != nil {
				s.logger.Warn("unsubscribing advertisement topic failed", "error", err)
			}
			s.started = false
		}
	}
	return cancel, nil
}

// handleFrame decodes one published frame and fans it out to the
// subscribers watching its address.
func (s *MQTTSource) handleFrame(_ string, payload []byte) error {
	var wire wireAdvertisement
	if err := json.Unmarshal(payload, &wire); err != nil {
		s.logger.Debug("undecodable advertisement frame", "error", err)
		return nil
	}

	addr := strings.ToUpper(wire.Address)

	s.mu.Lock()
	callbacks := make([]func(Advertisement), 0, len(s.subs[addr]))
	for _, fn := range s.subs[addr] {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	adv := Advertisement{
		Address:          addr,
		CompanyID:        wire.CompanyID,
		ManufacturerData: wire.ManufacturerData,
	}
	for _, fn := range callbacks {
		fn(adv)
	}
	return nil
}
