package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages at 1MB, in line with common
// broker limits. Entity state payloads are tiny; this guards against a
// bug marshalling something enormous.
const maxPayloadSize = 1 << 20

// Publish sends payload to a topic and waits for the broker to accept
// it. Retained messages are stored by the broker and handed to new
// subscribers immediately, which is what entity state topics want;
// commands and events should not be retained.
//
//	topic := mqtt.Topics{}.EntityState("roborock_s7_battery")
//	err := client.Publish(topic, stateJSON, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes retained at the configured default QoS.
// The entity registry uses this for state topics.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
