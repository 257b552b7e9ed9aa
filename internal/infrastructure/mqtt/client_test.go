package mqtt

import (
	"errors"
	"testing"

	"github.com/Lash-L/hubcore/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.SystemStatus(); got != "hubcore/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
	if got := topics.EntityState("vacuum_a01_battery"); got != "hubcore/state/vacuum_a01_battery" {
		t.Errorf("EntityState() = %q", got)
	}
	if got := topics.AllEntityStates(); got != "hubcore/state/+" {
		t.Errorf("AllEntityStates() = %q", got)
	}
	if got := topics.IntegrationEvent("roborock"); got != "hubcore/event/roborock" {
		t.Errorf("IntegrationEvent() = %q", got)
	}
}

func TestEntityIDFromStateTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"hubcore/state/vacuum_a01_battery", "vacuum_a01_battery"},
		{"hubcore/state/", ""},
		{"hubcore/state/foo/bar", ""},
		{"hubcore/system/status", ""},
		{"other/state/foo", ""},
	}

	for _, tt := range tests {
		if got := EntityIDFromStateTopic(tt.topic); got != tt.want {
			t.Errorf("EntityIDFromStateTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			TLS:      true,
			ClientID: "hubcore-test",
		},
		Auth: config.MQTTAuthConfig{
			Username: "hub",
			Password: "secret",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker URL, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("broker URL = %q, want ssl scheme", got)
	}
	if opts.ClientID != "hubcore-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" {
		t.Errorf("Username = %q", opts.Username)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS enabled but TLSConfig is nil")
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("hubcore/state/x", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: err = %v, want ErrInvalidQoS", err)
	}
	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("hubcore/state/x", big, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload: err = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("hubcore/state/+", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: err = %v, want ErrSubscribeFailed", err)
	}
}
