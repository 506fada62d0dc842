package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"uplink/internal/auth"
	"uplink/internal/history"
	"uplink/internal/ratelimit"
	"uplink/internal/session"
	"uplink/pkg/types"
)

// Conn is the broker's view of a client connection. Send must not block: a
// slow or hung transport must never stall event processing for everyone else.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(ev types.ServerEvent) error
	Close() error
}

// eventKind discriminates the inbound event union.
type eventKind int

const (
	evJoin eventKind = iota
	evMessage
	evScan
	evDirectMessage
	evPurge
	evDisconnect
)

// event is the tagged union carried on the broker's event channel. Only the
// field matching kind is populated.
type event struct {
	kind   eventKind
	conn   Conn // join only
	connID string
	join   types.JoinPayload
	msg    types.MessagePayload
	dm     types.DirectMessagePayload
	purge  types.PurgePayload
}

// Broker is the relay orchestrator. All shared state (session registry, rate
// limiter, history buffer, connection table) is mutated from a single
// processing goroutine, so every inbound event runs to completion, including
// all resulting broadcasts, before the next one begins.
type Broker struct {
	registry  *session.Registry
	limiter   *ratelimit.Limiter
	hist      *history.Buffer
	authority *auth.Authority
	logger    *slog.Logger

	maxMessageLen int

	events   chan event
	shutdown chan struct{}
	running  bool
	mu       sync.RWMutex

	// conns and lastStamp are touched only by the processing goroutine.
	conns     map[string]Conn
	lastStamp time.Time
}

// Options carries broker tunables taken from configuration.
type Options struct {
	MaxMessageLen int
	EventBuffer   int
}

// New creates a broker over its collaborators. The broker does not start
// processing until Start is called.
func New(reg *session.Registry, lim *ratelimit.Limiter, hist *history.Buffer, authority *auth.Authority, opts Options, logger *slog.Logger) *Broker {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 1024
	}
	return &Broker{
		registry:      reg,
		limiter:       lim,
		hist:          hist,
		authority:     authority,
		logger:        logger,
		maxMessageLen: opts.MaxMessageLen,
		events:        make(chan event, opts.EventBuffer),
		shutdown:      make(chan struct{}),
		conns:         make(map[string]Conn),
	}
}

// Start launches the processing goroutine.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	b.mu.Unlock()

	b.logger.Info("broker started")
	go b.run(ctx)
	return nil
}

// Stop halts event processing. Queued events that have not begun processing
// are discarded; best-effort delivery is all the relay promises.
func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return ErrNotRunning
	}
	b.running = false

	select {
	case <-b.shutdown:
	default:
		close(b.shutdown)
	}
	return nil
}

// Join queues a join event for a freshly established connection.
func (b *Broker) Join(conn Conn, p types.JoinPayload) error {
	if conn == nil {
		return ErrNilConnection
	}
	return b.enqueue(event{kind: evJoin, conn: conn, connID: conn.ID(), join: p})
}

// Message queues a broadcast chat message from connID.
func (b *Broker) Message(connID string, p types.MessagePayload) error {
	return b.enqueue(event{kind: evMessage, connID: connID, msg: p})
}

// Scan queues a roster query from connID.
func (b *Broker) Scan(connID string) error {
	return b.enqueue(event{kind: evScan, connID: connID})
}

// DirectMessage queues a unicast message from connID.
func (b *Broker) DirectMessage(connID string, p types.DirectMessagePayload) error {
	return b.enqueue(event{kind: evDirectMessage, connID: connID, dm: p})
}

// Purge queues a privileged purge request from connID.
func (b *Broker) Purge(connID string, p types.PurgePayload) error {
	return b.enqueue(event{kind: evPurge, connID: connID, purge: p})
}

// Disconnect queues connection teardown for connID. Safe to call for
// connections that never joined or that already disconnected.
func (b *Broker) Disconnect(connID string) error {
	return b.enqueue(event{kind: evDisconnect, connID: connID})
}

// Stats returns broker counters for the monitoring endpoint.
func (b *Broker) Stats() map[string]int {
	return map[string]int{
		"active_sessions": b.registry.Count(),
		"history_len":     b.hist.Len(),
	}
}

func (b *Broker) enqueue(ev event) error {
	b.mu.RLock()
	if !b.running {
		b.mu.RUnlock()
		return ErrNotRunning
	}
	b.mu.RUnlock()

	select {
	case b.events <- ev:
		return nil
	default:
		return ErrEventChannelFull
	}
}

func (b *Broker) run(ctx context.Context) {
	defer b.logger.Info("broker stopped")

	for {
		select {
		case ev := <-b.events:
			b.dispatch(ev)
		case <-b.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) dispatch(ev event) {
	switch ev.kind {
	case evJoin:
		b.handleJoin(ev.conn, ev.join)
	case evMessage:
		b.handleMessage(ev.connID, ev.msg)
	case evScan:
		b.handleScan(ev.connID)
	case evDirectMessage:
		b.handleDirectMessage(ev.connID, ev.dm)
	case evPurge:
		b.handlePurge(ev.connID, ev.purge)
	case evDisconnect:
		b.handleDisconnect(ev.connID)
	}
}

// newMessage builds a server-stamped message. IDs are server-generated and
// timestamps are monotonically non-decreasing in acceptance order.
func (b *Broker) newMessage(kind types.MessageKind, sender, content string, encrypted bool) types.Message {
	return types.Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		Sender:    sender,
		Content:   content,
		Timestamp: b.stamp(),
		Encrypted: encrypted,
	}
}

func (b *Broker) stamp() time.Time {
	now := time.Now()
	if now.Before(b.lastStamp) {
		now = b.lastStamp
	}
	b.lastStamp = now
	return now
}
