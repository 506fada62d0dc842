package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"uplink/pkg/types"
)

// Settings carries the transport tunables shared by every connection.
type Settings struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	SendBufferSize int
	MaxFrameSize   int64
}

// Connection wraps a websocket with a single writer goroutine. All frames,
// outbound events and pings alike, leave through writeLoop; gorilla permits
// at most one concurrent writer per socket.
type Connection struct {
	id       string
	remote   string
	conn     *websocket.Conn
	settings Settings

	sendCh    chan types.ServerEvent
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, settings Settings) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       uuid.New().String(),
		remote:   conn.RemoteAddr().String(),
		conn:     conn,
		settings: settings,
		sendCh:   make(chan types.ServerEvent, settings.SendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.writeLoop()
	return c
}

// ID returns the server-assigned connection identifier.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer's unmasked network address.
func (c *Connection) RemoteAddr() string { return c.remote }

// Send queues an event for delivery. It never blocks: a full buffer means
// the peer is not draining its socket, and the error tells the caller to
// give up on it.
func (c *Connection) Send(ev types.ServerEvent) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.sendCh <- ev:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) writeLoop() {
	pinger := time.NewTicker(c.settings.PingInterval)
	defer pinger.Stop()

	for {
		select {
		case ev := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				_ = c.Close()
				return
			}
		case <-pinger.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
