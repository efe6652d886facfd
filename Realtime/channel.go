package Realtime

import (
	"encoding/json"
	"log"
	"strings"

	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	MessageAuthenticate          = "authenticate"
	MessageConnectionEstablished = "connection_established"
	MessageError                 = "error"
)

type inbound struct {
	Type     string          `json:"type"`
	UserID   json.RawMessage `json:"userId,omitempty"`
	Username string          `json:"username"`
	Token    string          `json:"token,omitempty"`
}

type outbound struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	UserID  json.RawMessage `json:"userId,omitempty"`
}

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// Channel is the /ws endpoint. It only records who is connected; nothing is
// pushed beyond the authentication reply.
type Channel struct {
	registry *Registry
	secret   string
}

// NewChannel builds the endpoint. With a non-empty secret the authenticate
// message must carry a token issued to the same username.
func NewChannel(registry *Registry, secret string) *Channel {
	return &Channel{registry: registry, secret: secret}
}

func (ch *Channel) Registry() *Registry {
	return ch.registry
}

// Upgrade rejects plain HTTP requests to the websocket route.
func (ch *Channel) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (ch *Channel) Handler() fiber.Handler {
	return websocket.New(ch.serve)
}

func (ch *Channel) serve(conn *websocket.Conn) {
	connID := uuid.NewString()
	log.Printf("Websocket %s connected from %s", connID, conn.RemoteAddr())

	defer func() {
		if session, ok := ch.registry.Unregister(connID); ok {
			log.Printf("Websocket %s (%s) disconnected", connID, session.Username)
		} else {
			log.Printf("Websocket %s disconnected", connID)
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := ch.handleMessage(connID, conn, msg); err != nil {
			log.Printf("Websocket %s write failed: %v", connID, err)
			break
		}
	}
}

// handleMessage processes one frame. Malformed frames and unknown types are
// logged and ignored; only a failed write is returned.
func (ch *Channel) handleMessage(connID string, w jsonWriter, raw []byte) error {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Websocket %s sent a malformed message: %v", connID, err)
		return nil
	}

	switch msg.Type {
	case MessageAuthenticate:
		if !ch.authorized(msg) {
			return w.WriteJSON(outbound{Type: MessageError, Message: "Authentication failed"})
		}
		ch.registry.Register(connID, msg.UserID, msg.Username)
		return w.WriteJSON(outbound{
			Type:    MessageConnectionEstablished,
			Message: "Connected successfully",
			UserID:  msg.UserID,
		})
	default:
		return nil
	}
}

func (ch *Channel) authorized(msg inbound) bool {
	if ch.secret == "" {
		return true
	}
	claims, err := middleware.ParseToken(ch.secret, msg.Token)
	if err != nil {
		return false
	}
	return strings.EqualFold(claims.Username, msg.Username) || claims.Permission >= middleware.PermissionAdmin
}
