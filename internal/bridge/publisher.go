package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/haikubridge/haikubridge/internal/infrastructure/mqtt"
	"github.com/haikubridge/haikubridge/internal/senseme"
)

// State keys published under the topic base. The five Field values
// reappear here; the extra keys carry the device name and the raw-unit
// mirrors of the numeric attributes.
const (
	KeyName          = "name"
	KeyPower         = "power"
	KeySpeed         = "speed"
	KeySpeedRaw      = "speed_raw"
	KeyWhoosh        = "whoosh"
	KeyLightPower    = "light_power"
	KeyLightLevel    = "light_level"
	KeyLightLevelRaw = "light_level_raw"
)

// Broker is the MQTT surface the publisher writes through.
// *mqtt.Client satisfies it.
type Broker interface {
	// PublishRetained sends a retained message at the configured QoS.
	PublishRetained(topic string, payload []byte) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Publisher pushes fan state to MQTT as one retained plain-text message
// per present key. Speed and light level go out twice: as a 0-100
// percentage under the plain key and in raw device units under the
// _raw key. Retained messages let late subscribers pick up current
// state without waiting for the next poll.
type Publisher struct {
	broker Broker
	topics mqtt.Topics
	logger Logger
}

// NewPublisher creates a publisher for the given broker and topic
// layout.
func NewPublisher(broker Broker, topics mqtt.Topics) (*Publisher, error) {
	if broker == nil {
		return nil, fmt.Errorf("broker is required")
	}
	return &Publisher{
		broker: broker,
		topics: topics,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// PublishFields publishes every present field of snap to its per-key
// topic. When the broker is offline the whole publish is skipped;
// retained state would be stale by the time the broker came back and
// the next poll refreshes it anyway. A failed key is logged and does
// not stop the remaining keys; the first failure is returned.
func (p *Publisher) PublishFields(snap Snapshot) error {
	if !p.broker.IsConnected() {
		p.logger.Debug("broker offline, skipping state publish")
		return nil
	}
	return p.publishFields(snap)
}

// PublishSnapshot publishes every present field of snap to its per-key
// topic, then the whole snapshot as JSON to the aggregate state topic.
// The aggregate carries raw units under the plain keys.
func (p *Publisher) PublishSnapshot(snap Snapshot) error {
	if !p.broker.IsConnected() {
		p.logger.Debug("broker offline, skipping state publish")
		return nil
	}

	firstErr := p.publishFields(snap)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	aggregate := p.topics.StateAggregate()
	if err := p.broker.PublishRetained(aggregate, data); err != nil {
		p.logger.Warn("state publish failed", "topic", aggregate, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (p *Publisher) publishFields(snap Snapshot) error {
	var firstErr error
	publish := func(key, value string) {
		topic := p.topics.StateKey(key)
		if err := p.broker.PublishRetained(topic, []byte(value)); err != nil {
			p.logger.Warn("state publish failed", "topic", topic, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if snap.Name != "" {
		publish(KeyName, snap.Name)
	}
	if snap.Power != nil {
		publish(KeyPower, string(*snap.Power))
	}
	if snap.Speed != nil {
		publish(KeySpeed, strconv.Itoa(senseme.PercentFromRawSpeed(*snap.Speed)))
		publish(KeySpeedRaw, strconv.Itoa(*snap.Speed))
	}
	if snap.Whoosh != nil {
		publish(KeyWhoosh, string(*snap.Whoosh))
	}
	if snap.LightPower != nil {
		publish(KeyLightPower, string(*snap.LightPower))
	}
	if snap.LightLevel != nil {
		publish(KeyLightLevel, strconv.Itoa(senseme.PercentFromRawLight(*snap.LightLevel)))
		publish(KeyLightLevelRaw, strconv.Itoa(*snap.LightLevel))
	}

	return firstErr
}
