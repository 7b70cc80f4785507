package mqtt

import "fmt"

// DefaultTopicBase is the topic namespace used when mqtt.topic_base is
// left empty. All bridge topics live under this prefix.
const DefaultTopicBase = "haiku_fan"

// Topics builds the bridge's MQTT topic names. Using these helpers
// keeps topic naming consistent across publisher, command ingress, and
// tests. The zero value uses DefaultTopicBase; set Base to relocate
// the whole namespace.
//
//	topics := mqtt.Topics{Base: cfg.MQTT.TopicBase}
//	topics.StateKey("speed")    // "haiku_fan/speed"
//	topics.CommandSet("power")  // "haiku_fan/power/set"
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultTopicBase
	}
	return t.Base
}

// StateKey returns the retained per-attribute state topic.
//
// Example: haiku_fan/speed
func (t Topics) StateKey(key string) string {
	return fmt.Sprintf("%s/%s", t.base(), key)
}

// StateAggregate returns the retained full-snapshot state topic.
//
// Example: haiku_fan/state
func (t Topics) StateAggregate() string {
	return fmt.Sprintf("%s/state", t.base())
}

// CommandSet returns the command topic for one writable attribute.
//
// Example: haiku_fan/speed/set
func (t Topics) CommandSet(field string) string {
	return fmt.Sprintf("%s/%s/set", t.base(), field)
}

// BridgeStatus returns the bridge availability topic. The Last Will
// and Testament is registered here so subscribers see "offline" when
// the bridge dies without a graceful shutdown.
//
// Example: haiku_fan/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.base())
}

// AllCommandSets returns a pattern matching every command topic.
//
// Pattern: haiku_fan/+/set
func (t Topics) AllCommandSets() string {
	return fmt.Sprintf("%s/+/set", t.base())
}

// AllTopics returns a pattern matching the bridge's whole namespace.
// Use with caution - this receives ALL traffic under the base.
//
// Pattern: haiku_fan/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.base())
}
