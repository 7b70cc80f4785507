// Package mqtt provides MQTT client connectivity for the Haiku bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge publishes retained fan state under a configurable topic
// base (default haiku_fan) and accepts commands on {base}/{field}/set.
// The broker decouples the fan from home automation consumers:
//
//	Haiku Fan (UDP) ↔ Bridge ↔ MQTT Broker ↔ Home Assistant / scripts
//
// # Broker Outages
//
// The broker is optional infrastructure: Connect hands back a working
// client even when the broker is unreachable, subscriptions registered
// meanwhile are applied once it comes up, and publishes fail fast with
// ErrNotConnected so callers can treat state publishing as best-effort.
//
// # Security Considerations
//
//   - TLS is recommended for non-local brokers (broker.tls: true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Accept speed commands
//	err = client.Subscribe(client.Topics().CommandSet("speed"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish retained state
//	client.PublishRetained(client.Topics().StateKey("speed"), []byte("57"))
package mqtt
