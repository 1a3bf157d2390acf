// Package mqtt provides MQTT client connectivity for the show core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing playback events with QoS guarantees
//   - Command subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Retained context state, replayed after a reconnect
//
// # Architecture
//
// MQTT carries the show core's outward events (ticks, context lifecycle,
// play sessions) to consoles, visualisers and fixtures controllers, and
// carries remote transport commands back in.
//
//	Show Core ↔ MQTT Broker ↔ Consoles / Visualisers / Renderers
//
// # Topics
//
//	showcore/tick                        affected elements per tick
//	showcore/context/{id}/created        context registered
//	showcore/context/{id}/released       context released
//	showcore/context/{id}/session        session started or ended
//	showcore/context/{id}/notice         executor messages and errors
//	showcore/context/{id}/state          current state (retained)
//	showcore/command/context/{id}        inbound transport commands
//	showcore/system/status               online/offline (retained, LWT)
//
// # Security Considerations
//
//   - Enable TLS outside a closed show network (cfg.Broker.TLS=true)
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
//	err = client.Subscribe(mqtt.Topics{}.AllContextCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.Tick(), []byte(`{"elements":["dimmer-1"]}`), 0, false)
package mqtt
