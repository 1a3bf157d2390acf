package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps one message at 1 MiB, the common broker default.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Ticks go out at QoS 0 and are never retained; lifecycle and session
// events use the configured QoS. Retained state goes through
// PublishRetained so it survives a broker restart.
//
// Returns ErrInvalidTopic, ErrInvalidQoS, ErrPayloadTooLarge,
// ErrNotConnected, or ErrPublishFailed when the broker does not acknowledge.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes on %s", ErrPayloadTooLarge, len(payload), topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.paho.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishRetained publishes state for topic at the configured QoS with the
// retain flag set, and remembers it so it is replayed after a reconnect.
// An empty payload clears the retained message and forgets the topic.
//
// The state is remembered even when the client is disconnected, in which
// case ErrNotConnected is returned and the replay delivers it later.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	if err := checkTopicQoS(topic, 0); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes on %s", ErrPayloadTooLarge, len(payload), topic)
	}

	c.mu.Lock()
	if len(payload) == 0 {
		delete(c.retained, topic)
	} else {
		c.retained[topic] = payload
	}
	c.mu.Unlock()

	return c.Publish(topic, payload, c.stateQoS(), true)
}

// retainedState returns the remembered state for topic.
func (c *Client) retainedState(topic string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.retained[topic]
	return p, ok
}

func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	return nil
}

// await waits for token up to the publish timeout.
func await(token pahomqtt.Token) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("no acknowledgement within %v", defaultPublishTimeout)
	}
	return token.Error()
}

