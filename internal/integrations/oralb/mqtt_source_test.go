package oralb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Lash-L/hubcore/internal/infrastructure/mqtt"
)

type fakeBus struct {
	subscribes   int
	unsubscribes int
	handler      mqtt.MessageHandler
	topic        string
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.subscribes++
	b.topic = topic
	b.handler = handler
	return nil
}

func (b *fakeBus) Unsubscribe(string) error {
	b.unsubscribes++
	return nil
}

func (b *fakeBus) publish(t *testing.T, adv wireAdvertisement) {
	t.Helper()
	payload, err := json.Marshal(adv)
	if err != nil {
		t.Fatalf("marshalling frame: %v", err)
	}
	if err := b.handler(b.topic, payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestMQTTSource_SingleBusSubscription(t *testing.T) {
	bus := &fakeBus{}
	source := NewMQTTSource(bus, nopLogger{})
	ctx := context.Background()

	cancelA, err := source.Subscribe(ctx, testAddress, func(Advertisement) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancelB, err := source.Subscribe(ctx, "AA:BB:CC:DD:EE:FF", func(Advertisement) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if bus.subscribes != 1 {
		t.Errorf("bus subscribes = %d, want 1", bus.subscribes)
	}
	if bus.topic != (mqtt.Topics{}).BLEAdvertisements() {
		t.Errorf("subscribed to %q", bus.topic)
	}

	cancelA()
	if bus.unsubscribes != 0 {
		t.Error("unsubscribed while a subscriber remains")
	}
	cancelB()
	if bus.unsubscribes != 1 {
		t.Errorf("bus unsubscribes = %d, want 1", bus.unsubscribes)
	}
}

func TestMQTTSource_RoutesByAddress(t *testing.T) {
	bus := &fakeBus{}
	source := NewMQTTSource(bus, nopLogger{})

	var got []Advertisement
	cancel, err := source.Subscribe(context.Background(), testAddress, func(adv Advertisement) {
		got = append(got, adv)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	// Matching address, lower-cased on the wire.
	bus.publish(t, wireAdvertisement{
		Address:          "78:db:2f:c2:48:be",
		CompanyID:        CompanyID,
		ManufacturerData: frame(3, 0x20, 0, 45, 1, 1),
	})

	// Different brush.
	bus.publish(t, wireAdvertisement{
		Address:          "AA:BB:CC:DD:EE:FF",
		CompanyID:        CompanyID,
		ManufacturerData: frame(2, 0, 0, 0, 0, 0),
	})

	if len(got) != 1 {
		t.Fatalf("received %d advertisements, want 1", len(got))
	}
	if got[0].Address != testAddress {
		t.Errorf("address = %q, want %q", got[0].Address, testAddress)
	}
	if got[0].CompanyID != CompanyID {
		t.Errorf("company ID = %#x", got[0].CompanyID)
	}

	state, err := ParseAdvertisement(got[0].Address, got[0].ManufacturerData)
	if err != nil {
		t.Fatalf("ParseAdvertisement: %v", err)
	}
	if state.BrushTime != 45*time.Second {
		t.Errorf("brush time = %v, want 45s", state.BrushTime)
	}
}

func TestMQTTSource_IgnoresMalformedFrames(t *testing.T) {
	bus := &fakeBus{}
	source := NewMQTTSource(bus, nopLogger{})

	called := false
	cancel, err := source.Subscribe(context.Background(), testAddress, func(Advertisement) {
		called = true
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := bus.handler(bus.topic, []byte("not json")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if called {
		t.Error("malformed frame reached a subscriber")
	}
}
