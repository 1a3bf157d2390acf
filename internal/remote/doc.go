// Package remote bridges the execution manager to MQTT.
//
// Outbound, it publishes the affected elements of every non-empty tick,
// context lifecycle changes, play session starts and ends, and executor
// notices. Each context also has a retained state topic, cleared on
// release, so a late subscriber learns what is loaded. Inbound, it accepts
// transport commands for individual contexts.
//
//	execution.Manager ──events──▶ Bridge (queue) ──▶ Transport.Publish
//	        ▲                                          showcore/tick
//	        │ Apply                                    showcore/context/{id}/...
//	        └──────────── Bridge ◀── Transport.Subscribe
//	                                 showcore/command/context/+
//
// Event handlers only enqueue. Run publishes from its own goroutine so a
// slow or disconnected broker never stalls the tick loop. Tick messages
// are best effort (QoS 0) and are the first to be dropped when the queue
// is full.
package remote
