package broker

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"uplink/pkg/types"
)

// handleJoin registers the session and brings the newcomer up to date: the
// history snapshot and the joined confirmation go to the new connection only,
// the join notice goes to everyone else.
func (b *Broker) handleJoin(conn Conn, p types.JoinPayload) {
	connID := conn.ID()
	if _, exists := b.conns[connID]; exists {
		// Alias is immutable for the life of a connection; a second join
		// on the same connection is ignored.
		return
	}

	b.conns[connID] = conn
	sess := b.registry.Register(connID, p.Alias, conn.RemoteAddr())

	b.unicast(connID, types.ServerEvent{Event: types.EventHistory, Data: b.hist.Snapshot()})

	notice := b.newMessage(types.MessageKindSystem, types.SystemSender,
		fmt.Sprintf("User %s has joined the secure channel.", sess.Alias), false)
	b.hist.Append(notice)
	b.broadcastExcept(connID, types.ServerEvent{Event: types.EventMessage, Data: notice})

	b.unicast(connID, types.ServerEvent{Event: types.EventJoined, Data: sess})

	b.logger.Info("session joined", "conn_id", connID, "alias", sess.Alias)
}

// handleMessage relays a broadcast chat message to everyone except the
// sender, who is expected to have applied its own optimistic local copy.
func (b *Broker) handleMessage(connID string, p types.MessagePayload) {
	sess, ok := b.registry.Lookup(connID)
	if !ok {
		return
	}

	if res := b.limiter.Check(connID, time.Now()); !res.Allowed {
		b.sendError(connID, fmt.Sprintf("Rate limit exceeded. Cooldown: %ds.", res.RetryAfter))
		return
	}

	content := truncate(p.Content, b.maxMessageLen)
	if content == "" {
		return
	}

	msg := b.newMessage(types.MessageKindPeer, sess.Alias, content, p.Encrypted)
	b.hist.Append(msg)
	b.broadcastExcept(connID, types.ServerEvent{Event: types.EventMessage, Data: msg})
}

// handleScan answers a roster query. Rate-limited scans are dropped without
// an error reply; roster queries are not worth reporting failure for.
func (b *Broker) handleScan(connID string) {
	if _, ok := b.registry.Lookup(connID); !ok {
		return
	}

	if res := b.limiter.Check(connID, time.Now()); !res.Allowed {
		return
	}

	roster := lo.Map(b.registry.ListAll(), func(s *types.Session, _ int) types.RosterEntry {
		return types.RosterEntry{Alias: s.Alias, MaskedAddr: s.MaskedAddr}
	})
	b.unicast(connID, types.ServerEvent{Event: types.EventRosterResult, Data: roster})
}

// handleDirectMessage delivers a private message to the target and echoes a
// relabeled copy to the requester. The two deliveries are independent
// messages, not shared references.
func (b *Broker) handleDirectMessage(connID string, p types.DirectMessagePayload) {
	sess, ok := b.registry.Lookup(connID)
	if !ok {
		return
	}

	if res := b.limiter.Check(connID, time.Now()); !res.Allowed {
		return
	}

	content := truncate(p.Content, b.maxMessageLen)
	if content == "" {
		return
	}

	targetID, found := b.registry.LookupByAlias(p.Target)
	if !found {
		b.sendError(connID, fmt.Sprintf("Target not found: %s", p.Target))
		return
	}

	private := b.newMessage(types.MessageKindPeer, sess.Alias+" [PRIVATE]", content, p.Encrypted)
	b.unicast(targetID, types.ServerEvent{Event: types.EventMessage, Data: private})

	echo := b.newMessage(types.MessageKindPeer, "To: "+p.Target, content, p.Encrypted)
	b.unicast(connID, types.ServerEvent{Event: types.EventMessage, Data: echo})
}

// handlePurge clears history and announces the purge to every connection,
// the requester included. A denied request has no side effects beyond a
// single error reply.
func (b *Broker) handlePurge(connID string, p types.PurgePayload) {
	if _, ok := b.registry.Lookup(connID); !ok {
		return
	}

	if !b.authority.AuthorizePurge(p.Key) {
		b.sendError(connID, "Purge denied: invalid authorization key.")
		return
	}

	b.hist.Clear()
	b.broadcastAll(types.ServerEvent{Event: types.EventPurgeSignal})

	notice := b.newMessage(types.MessageKindSystem, types.SystemSender,
		"History buffer sanitized. All records purged.", false)
	b.broadcastAll(types.ServerEvent{Event: types.EventMessage, Data: notice})
	b.hist.Append(notice)

	b.logger.Info("history purged", "conn_id", connID)
}

// handleDisconnect tears down the session. Events from the same connection
// that arrive after teardown resolve to no-ops.
func (b *Broker) handleDisconnect(connID string) {
	sess, ok := b.registry.Lookup(connID)
	if !ok {
		return
	}

	b.registry.Remove(connID)
	b.limiter.Forget(connID)
	delete(b.conns, connID)

	notice := b.newMessage(types.MessageKindSystem, types.SystemSender,
		fmt.Sprintf("Connection lost: %s", sess.Alias), false)
	b.broadcastAll(types.ServerEvent{Event: types.EventMessage, Data: notice})
	b.hist.Append(notice)

	b.logger.Info("session closed", "conn_id", connID, "alias", sess.Alias)
}

func (b *Broker) sendError(connID, text string) {
	msg := b.newMessage(types.MessageKindError, types.SystemSender, text, false)
	b.unicast(connID, types.ServerEvent{Event: types.EventMessage, Data: msg})
}

func (b *Broker) unicast(connID string, ev types.ServerEvent) {
	conn, ok := b.conns[connID]
	if !ok {
		return
	}
	b.deliver(conn, ev)
}

func (b *Broker) broadcastAll(ev types.ServerEvent) {
	for _, conn := range b.conns {
		b.deliver(conn, ev)
	}
}

func (b *Broker) broadcastExcept(exceptID string, ev types.ServerEvent) {
	for connID, conn := range b.conns {
		if connID == exceptID {
			continue
		}
		b.deliver(conn, ev)
	}
}

// deliver hands an event to the transport. A connection that cannot accept
// it is closed; its read loop then reports the disconnect through the normal
// event path.
func (b *Broker) deliver(conn Conn, ev types.ServerEvent) {
	if err := conn.Send(ev); err != nil {
		b.logger.Warn("dropping unresponsive connection", "conn_id", conn.ID(), "error", err)
		_ = conn.Close()
	}
}

// truncate caps s at max runes. Truncation is the only sanitization applied;
// content is otherwise relayed verbatim.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
