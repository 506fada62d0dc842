package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientEvent_Join(t *testing.T) {
	event, payload, err := DecodeClientEvent([]byte(`{"event":"join","data":{"alias":"neon_ghost"}}`))
	require.NoError(t, err)
	require.Equal(t, EventJoin, event)
	require.Equal(t, JoinPayload{Alias: "neon_ghost"}, payload)
}

func TestDecodeClientEvent_JoinEmptyAlias(t *testing.T) {
	// Empty alias is legal; the registry generates a fallback name.
	_, payload, err := DecodeClientEvent([]byte(`{"event":"join"}`))
	require.NoError(t, err)
	require.Equal(t, JoinPayload{}, payload)
}

func TestDecodeClientEvent_Message(t *testing.T) {
	event, payload, err := DecodeClientEvent([]byte(`{"event":"message","data":{"content":"hello","encrypted":true}}`))
	require.NoError(t, err)
	require.Equal(t, EventMessage, event)
	require.Equal(t, MessagePayload{Content: "hello", Encrypted: true}, payload)
}

func TestDecodeClientEvent_Scan(t *testing.T) {
	event, payload, err := DecodeClientEvent([]byte(`{"event":"scan"}`))
	require.NoError(t, err)
	require.Equal(t, EventScan, event)
	require.Nil(t, payload)
}

func TestDecodeClientEvent_DirectMessage(t *testing.T) {
	event, payload, err := DecodeClientEvent([]byte(`{"event":"directMessage","data":{"target":"bob","content":"hi"}}`))
	require.NoError(t, err)
	require.Equal(t, EventDirectMessage, event)
	require.Equal(t, DirectMessagePayload{Target: "bob", Content: "hi"}, payload)
}

func TestDecodeClientEvent_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{{`, ErrMalformedEnvelope},
		{"unknown event", `{"event":"teleport"}`, ErrUnknownEvent},
		{"missing dm target", `{"event":"directMessage","data":{"content":"hi"}}`, ErrInvalidPayload},
		{"missing purge key", `{"event":"purge","data":{}}`, ErrInvalidPayload},
		{"wrong payload shape", `{"event":"message","data":{"content":42}}`, ErrInvalidPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeClientEvent([]byte(tc.raw))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
