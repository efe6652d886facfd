package Realtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"AviCRM/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []outbound
	err      error
}

func (c *captureWriter) WriteJSON(v interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, v.(outbound))
	return nil
}

func TestHandleMessage_Authenticate(t *testing.T) {
	registry := NewRegistry()
	ch := NewChannel(registry, "")
	w := &captureWriter{}

	err := ch.handleMessage("conn-1", w, []byte(`{"type":"authenticate","userId":7,"username":"jsmith"}`))
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	assert.Equal(t, MessageConnectionEstablished, w.messages[0].Type)
	assert.Equal(t, "Connected successfully", w.messages[0].Message)
	assert.JSONEq(t, `7`, string(w.messages[0].UserID))

	session, ok := registry.Lookup("conn-1")
	require.True(t, ok)
	assert.Equal(t, "jsmith", session.Username)
	assert.Equal(t, 1, registry.Count())
}

func TestHandleMessage_IgnoresMalformedAndUnknown(t *testing.T) {
	registry := NewRegistry()
	ch := NewChannel(registry, "")
	w := &captureWriter{}

	require.NoError(t, ch.handleMessage("conn-1", w, []byte(`{not json`)))
	require.NoError(t, ch.handleMessage("conn-1", w, []byte(`{"type":"ping"}`)))

	assert.Empty(t, w.messages)
	assert.Equal(t, 0, registry.Count())
}

func TestHandleMessage_TokenRequiredWhenSecretSet(t *testing.T) {
	registry := NewRegistry()
	ch := NewChannel(registry, "ws-secret")
	w := &captureWriter{}

	require.NoError(t, ch.handleMessage("conn-1", w, []byte(`{"type":"authenticate","userId":7,"username":"jsmith"}`)))
	require.Len(t, w.messages, 1)
	assert.Equal(t, MessageError, w.messages[0].Type)
	assert.Equal(t, 0, registry.Count())

	token, err := middleware.IssueToken("ws-secret", "jsmith", middleware.PermissionMobile, time.Hour)
	require.NoError(t, err)
	frame, err := json.Marshal(map[string]interface{}{"type": "authenticate", "userId": 7, "username": "jsmith", "token": token})
	require.NoError(t, err)

	require.NoError(t, ch.handleMessage("conn-1", w, frame))
	assert.Equal(t, MessageConnectionEstablished, w.messages[1].Type)
	assert.Equal(t, 1, registry.Count())
}

func TestHandleMessage_TokenForAnotherUserRejected(t *testing.T) {
	ch := NewChannel(NewRegistry(), "ws-secret")
	w := &captureWriter{}

	token, err := middleware.IssueToken("ws-secret", "mlee", middleware.PermissionMobile, time.Hour)
	require.NoError(t, err)
	frame, err := json.Marshal(map[string]interface{}{"type": "authenticate", "username": "jsmith", "token": token})
	require.NoError(t, err)

	require.NoError(t, ch.handleMessage("conn-1", w, frame))
	assert.Equal(t, MessageError, w.messages[0].Type)
}

func TestHandleMessage_WriteFailure(t *testing.T) {
	ch := NewChannel(NewRegistry(), "")
	w := &captureWriter{err: errors.New("closed")}

	err := ch.handleMessage("conn-1", w, []byte(`{"type":"authenticate","userId":7,"username":"jsmith"}`))
	assert.Error(t, err)
}
