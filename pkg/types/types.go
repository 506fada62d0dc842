package types

import (
	"encoding/json"
	"time"
)

// MessageKind classifies relayed messages for client-side presentation.
type MessageKind string

const (
	MessageKindSystem MessageKind = "system"
	MessageKindPeer   MessageKind = "peer"
	MessageKindError  MessageKind = "error"
	MessageKindInfo   MessageKind = "info"
)

// SystemSender is the display name stamped on broker-generated messages.
const SystemSender = "SYSTEM"

// Client event names accepted at the transport boundary.
const (
	EventJoin          = "join"
	EventMessage       = "message"
	EventScan          = "scan"
	EventDirectMessage = "directMessage"
	EventPurge         = "purge"
)

// Server event names emitted to clients.
const (
	EventHistory      = "history"
	EventJoined       = "joined"
	EventRosterResult = "rosterResult"
	EventPurgeSignal  = "purgeSignal"
)

// Message is a single relayed chat entry. Messages are created by the broker
// only and are immutable once built; the Sender field is always derived from
// the registered alias of the originating session, never client-supplied.
type Message struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"kind"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Encrypted bool        `json:"encrypted,omitempty"`
}

// Session binds a transport connection to its claimed display identity.
// MaskedAddr is a display-only derivation of the transport address; the raw
// address is never exposed to peers.
type Session struct {
	ConnectionID string    `json:"connection_id"`
	Alias        string    `json:"alias"`
	MaskedAddr   string    `json:"masked_addr"`
	JoinedAt     time.Time `json:"joined_at"`
}

// RosterEntry is the per-session view returned by a roster scan.
type RosterEntry struct {
	Alias      string `json:"alias"`
	MaskedAddr string `json:"masked_addr"`
}

// ClientEvent is the inbound wire envelope. Data is decoded per event name by
// DecodeClientEvent before any handler logic runs.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound wire envelope.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload carries the claimed alias. An empty alias is legal and yields a
// generated fallback name.
type JoinPayload struct {
	Alias string `json:"alias" validate:"max=64"`
}

// MessagePayload carries a broadcast chat message. Content length is not
// validated here; oversized content is truncated by the broker and content
// that is empty after truncation is dropped silently.
type MessagePayload struct {
	Content   string `json:"content"`
	Encrypted bool   `json:"encrypted"`
}

// DirectMessagePayload carries a unicast message addressed by alias.
type DirectMessagePayload struct {
	Target    string `json:"target" validate:"required,max=64"`
	Content   string `json:"content"`
	Encrypted bool   `json:"encrypted"`
}

// PurgePayload carries the shared secret for the privileged purge command.
type PurgePayload struct {
	Key string `json:"key" validate:"required"`
}
