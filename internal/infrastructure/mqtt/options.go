package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Lash-L/hubcore/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial broker connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds broker acknowledgements for publish,
	// subscribe, and unsubscribe round-trips.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is milliseconds to wait for pending
	// operations on disconnect.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the protocol keepalive interval.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the highest valid MQTT QoS level.
	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions maps the mqtt section of config.yaml onto paho
// options: broker URL with tcp or ssl scheme, client ID, optional
// credentials, clean session, and auto-reconnect with backoff between
// the configured initial and max delays.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent broker session; subscriptions are restored from the
	// client's own tracking on reconnect.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers the Last Will on the system status topic so
// the broker announces an unclean hub exit. QoS 1 and retained, so late
// subscribers still see the last status.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(Topics{}.SystemStatus(), willPayload, 1, true)
}

func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload is the graceful counterpart to the LWT payload,
// distinguished by its reason field.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
