// Package mqtt provides MQTT client connectivity for BragerConnect Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BragerConnect Core uses MQTT to expose cloud heating devices to Home
// Assistant. The broker (Mosquitto) decouples the service from its
// consumers: entity states and discovery payloads go out, commands come in.
//
//	BragerConnect Core ↔ MQTT Broker ↔ Home Assistant
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all entity commands from Home Assistant
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish an entity state
//	topic := mqtt.Topics{}.DeviceState("MODULE_B1", "boiler_temperature")
//	client.Publish(topic, []byte("61.5"), 1, true)
package mqtt
