package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/mqtt"
)

// Bridge defaults.
const (
	DefaultQueueSize = 1024
	DefaultQoS       = 1
)

// Transport is the MQTT surface the Bridge needs. *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Manager is the execution surface the Bridge needs. *execution.Manager
// satisfies it.
type Manager interface {
	OnTick(fn func(execution.ElementSet)) func()
	OnContextCreated(fn func(execution.Context)) func()
	OnContextReleased(fn func(execution.Context)) func()
	OnSessionStarted(fn func(execution.SessionEvent)) func()
	OnSessionEnded(fn func(execution.SessionEvent)) func()
	OnNotice(fn func(execution.NoticeEvent)) func()
	Apply(id string, action execution.Action) (execution.Context, error)
}

// Options configures a Bridge. Zero fields take defaults.
type Options struct {
	// QoS for lifecycle, session, notice and command traffic. Nil means
	// DefaultQoS. Ticks always use 0.
	QoS *byte

	QueueSize int
	Logger    Logger

	// OnCommand is called after a command has been applied.
	OnCommand func(action execution.Action)
}

type outbound struct {
	topic   string
	payload []byte
	qos     byte
	// retained state goes out through PublishRetained; an empty payload
	// clears it.
	retained bool
}

// Bridge publishes manager events to MQTT and applies commands received
// from it.
type Bridge struct {
	mgr    Manager
	tr     Transport
	qos    byte
	logger Logger
	onCmd  func(execution.Action)

	queue   chan outbound
	dropped atomic.Uint64

	mu      sync.Mutex
	started bool
	detach  []func()
}

// New creates a Bridge between mgr and tr. Call Start to subscribe and
// Run to publish.
func New(mgr Manager, tr Transport, opts Options) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	qos := byte(DefaultQoS)
	if opts.QoS != nil {
		qos = *opts.QoS
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Bridge{
		mgr:    mgr,
		tr:     tr,
		qos:    qos,
		logger: opts.Logger,
		onCmd:  opts.OnCommand,
		queue:  make(chan outbound, opts.QueueSize),
	}
}

// Start subscribes to context commands and to the manager's events.
//
// Returns:
//   - error: ErrAlreadyStarted, or the subscribe error (nothing is attached)
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}
	if err := b.tr.Subscribe(mqtt.Topics{}.AllContextCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.detach = []func(){
		b.mgr.OnTick(b.onTick),
		b.mgr.OnContextCreated(func(c execution.Context) { b.onContext(c, mqtt.ContextCreated) }),
		b.mgr.OnContextReleased(func(c execution.Context) { b.onContext(c, mqtt.ContextReleased) }),
		b.mgr.OnSessionStarted(func(ev execution.SessionEvent) { b.onSession(ev, SessionStarted) }),
		b.mgr.OnSessionEnded(func(ev execution.SessionEvent) { b.onSession(ev, SessionEnded) }),
		b.mgr.OnNotice(b.onNotice),
	}
	b.started = true

	b.logger.Info("remote bridge started", "commands", mqtt.Topics{}.AllContextCommands())
	return nil
}

// Stop detaches from the manager and unsubscribes from commands.
// Queued messages are still published by Run.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	for _, fn := range b.detach {
		fn()
	}
	b.detach = nil
	b.started = false

	if err := b.tr.Unsubscribe(mqtt.Topics{}.AllContextCommands()); err != nil {
		b.logger.Warn("unsubscribing from commands", "error", err)
	}
	b.logger.Info("remote bridge stopped")
}

// Run publishes queued messages until ctx is cancelled, then publishes
// whatever is still queued and returns. Call it from exactly one goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return nil
		case msg := <-b.queue:
			b.publish(msg)
		}
	}
}

// Dropped returns the number of messages discarded because the queue was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bridge) drain() {
	for {
		select {
		case msg := <-b.queue:
			b.publish(msg)
		default:
			return
		}
	}
}

func (b *Bridge) publish(msg outbound) {
	var err error
	if msg.retained {
		err = b.tr.PublishRetained(msg.topic, msg.payload)
	} else {
		err = b.tr.Publish(msg.topic, msg.payload, msg.qos, false)
	}
	if err != nil {
		b.logger.Warn("publishing", "topic", msg.topic, "error", err)
	}
}

func (b *Bridge) enqueue(topic string, v any, qos byte) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding message", "topic", topic, "error", err)
		return
	}
	b.push(outbound{topic: topic, payload: payload, qos: qos})
}

// enqueueState queues the retained state of a context. A nil state clears it.
func (b *Bridge) enqueueState(contextID string, state *StateMessage) {
	topic := mqtt.Topics{}.ContextEvent(contextID, mqtt.ContextState)
	var payload []byte
	if state != nil {
		var err error
		if payload, err = json.Marshal(state); err != nil {
			b.logger.Error("encoding state", "topic", topic, "error", err)
			return
		}
	}
	b.push(outbound{topic: topic, payload: payload, qos: b.qos, retained: true})
}

func (b *Bridge) push(msg outbound) {
	select {
	case b.queue <- msg:
	default:
		b.dropped.Add(1)
		b.logger.Debug("outbound queue full, message dropped", "topic", msg.topic)
	}
}

func (b *Bridge) onTick(set execution.ElementSet) {
	if len(set) == 0 {
		return
	}
	b.enqueue(mqtt.Topics{}.Tick(), TickMessage{Elements: set.Sorted(), At: time.Now().UTC()}, 0)
}

func (b *Bridge) onContext(c execution.Context, event string) {
	info := execution.Describe(c)
	now := time.Now().UTC()
	b.enqueue(mqtt.Topics{}.ContextEvent(info.ID, event), ContextMessage{
		ID:     info.ID,
		Name:   info.Name,
		Target: string(info.Target),
		Event:  event,
		At:     now,
	}, b.qos)

	if event == mqtt.ContextReleased {
		b.enqueueState(info.ID, nil)
		return
	}
	b.enqueueState(info.ID, &StateMessage{
		ID:      info.ID,
		Name:    info.Name,
		Target:  string(info.Target),
		Running: info.Running,
		At:      now,
	})
}

func (b *Bridge) onSession(ev execution.SessionEvent, event string) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	b.enqueue(mqtt.Topics{}.ContextEvent(ev.ContextID, mqtt.ContextSession), SessionMessage{
		ContextID:   ev.ContextID,
		ContextName: ev.ContextName,
		Sequence:    ev.Sequence,
		Session:     ev.Session,
		Event:       event,
		StartMS:     ev.Bounds.Start.Milliseconds(),
		EndMS:       ev.Bounds.End.Milliseconds(),
		Completed:   event == SessionEnded && ev.Completed,
		At:          at.UTC(),
	}, b.qos)

	b.enqueueState(ev.ContextID, &StateMessage{
		ID:       ev.ContextID,
		Name:     ev.ContextName,
		Running:  event == SessionStarted,
		Sequence: ev.Sequence,
		Session:  ev.Session,
		At:       at.UTC(),
	})
}

func (b *Bridge) onNotice(ev execution.NoticeEvent) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	b.enqueue(mqtt.Topics{}.ContextEvent(ev.ContextID, mqtt.ContextNotice), NoticeMessage{
		ContextID:   ev.ContextID,
		ContextName: ev.ContextName,
		Level:       ev.Level,
		Text:        ev.Text,
		At:          at.UTC(),
	}, b.qos)
}

// handleCommand applies a command message. Errors are logged by the MQTT
// client's handler wrapper.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, ok := mqtt.Topics{}.ParseContextCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrBadCommand, topic)
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	action, err := execution.ParseAction(msg.Action)
	if err != nil {
		return err
	}

	if _, err := b.mgr.Apply(id, action); err != nil {
		return fmt.Errorf("applying %s to %s: %w", action, id, err)
	}
	b.logger.Info("remote command applied", "context_id", id, "action", string(action))

	if b.onCmd != nil {
		b.onCmd(action)
	}
	return nil
}
