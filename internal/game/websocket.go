package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/ggiovanne/coup/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var (
	errUnknownMessage = errors.New("unknown message type")
	errBadPayload     = errors.New("malformed message")
	errRateLimited    = errors.New("too many messages, slow down")
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is one websocket connection. Its identity lives as long as the
// connection does.
type Client struct {
	ID       string
	Username string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, username string, limiter *rate.Limiter) *Client {
	return &Client{
		ID:       utils.NewPlayerID(),
		Username: username,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		limiter:  limiter,
	}
}

// enqueue never blocks. A client that cannot keep up is cut off.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("player", c.ID).Msg("[Client.enqueue] Send buffer full, dropping connection")
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("player", c.ID).Msg("[Client.writePump] Write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

type SocketHandler struct {
	manager  *Manager
	hub      *Hub
	upgrader websocket.Upgrader
	rate     rate.Limit
	burst    int
}

// NewSocketHandler wires connections to the manager. messageRate and burst
// bound inbound messages per connection; originAllowed vets the upgrade.
func NewSocketHandler(manager *Manager, hub *Hub, messageRate float64, burst int, originAllowed func(string) bool) *SocketHandler {
	return &SocketHandler{
		manager: manager,
		hub:     hub,
		rate:    rate.Limit(messageRate),
		burst:   burst,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"))
			},
		},
	}
}

// HandleWebSocket upgrades the request, assigns the connection an identity
// and starts its pumps.
func (h *SocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[HandleWebSocket] Upgrade failed")
		return
	}

	username := utils.CleanName(r.URL.Query().Get("name"), defaultUsername)
	client := newClient(conn, username, rate.NewLimiter(h.rate, h.burst))
	h.hub.Register(client)
	log.Info().Str("player", client.ID).Str("username", username).Msg("[HandleWebSocket] Client connected")

	go client.writePump()

	h.hub.Publish(client.ID, internal.Message[internal.ConnectedData]{
		Type: internal.MsgConnected,
		Data: internal.ConnectedData{PlayerID: client.ID},
	})
	h.hub.Publish(client.ID, internal.Message[[]internal.RoomSummary]{
		Type: internal.MsgRoomsUpdate,
		Data: h.manager.ListRooms(),
	})

	go h.handleMessages(client)
}

// handleMessages reads intents until the connection drops, then takes the
// player out of their room.
func (h *SocketHandler) handleMessages(c *Client) {
	defer func() {
		h.manager.RemovePlayerOnDisconnect(c.ID)
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("player", c.ID).Msg("[handleMessages] Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("player", c.ID).Msg("[handleMessages] Read error")
			}
			return
		}
		if !c.limiter.Allow() {
			h.sendError(c, errRateLimited)
			continue
		}

		var base internal.Message[json.RawMessage]
		if err := json.Unmarshal(raw, &base); err != nil {
			h.sendError(c, errBadPayload)
			continue
		}
		log.Debug().Str("player", c.ID).Str("type", base.Type).Msg("[handleMessages] Received")

		if err := h.dispatch(c, base); err != nil {
			h.sendError(c, err)
		}
	}
}

func (h *SocketHandler) dispatch(c *Client, msg internal.Message[json.RawMessage]) error {
	switch msg.Type {
	case internal.MsgCreateRoom:
		data, err := decode[internal.RoomRequestData](msg.Data)
		if err != nil {
			return err
		}
		_, err = h.manager.CreateRoom(c.ID, h.username(c, data.Username), data.RoomName, data.Password)
		return err

	case internal.MsgJoinRoom:
		data, err := decode[internal.RoomRequestData](msg.Data)
		if err != nil {
			return err
		}
		return h.manager.JoinRoom(c.ID, h.username(c, data.Username), data.RoomName, data.Password)

	case internal.MsgLeaveRoom:
		return h.manager.LeaveRoom(c.ID)

	case internal.MsgListRooms:
		h.hub.Publish(c.ID, internal.Message[[]internal.RoomSummary]{
			Type: internal.MsgRoomsUpdate,
			Data: h.manager.ListRooms(),
		})
		return nil

	case internal.MsgStartGame:
		return h.manager.StartGame("", c.ID)

	case internal.MsgReopenRoom:
		return h.manager.ReopenRoom("", c.ID)

	case internal.MsgDeclareAction, internal.MsgPerformAction:
		data, err := decode[internal.ActionData](msg.Data)
		if err != nil {
			return err
		}
		if msg.Type == internal.MsgPerformAction {
			return h.manager.PerformSimpleAction("", c.ID, data.Action, data.TargetID)
		}
		return h.manager.Declare("", c.ID, data.Action, data.TargetID)

	case internal.MsgPermitAction:
		return h.manager.Permit("", c.ID)

	case internal.MsgBlockAction:
		data, err := decode[internal.BlockData](msg.Data)
		if err != nil {
			return err
		}
		return h.manager.Block("", c.ID, data.Role)

	case internal.MsgChallengeAction:
		return h.manager.ChallengeAction("", c.ID)

	case internal.MsgChallengeBlock:
		return h.manager.ChallengeBlock("", c.ID)

	case internal.MsgCancelAction:
		return h.manager.Cancel("", c.ID)

	case internal.MsgChooseLossCard:
		data, err := decode[internal.LossCardData](msg.Data)
		if err != nil {
			return err
		}
		return h.manager.ChooseLossCard("", c.ID, data.Role)

	case internal.MsgChooseExchangeReturn:
		data, err := decode[internal.ExchangeReturnData](msg.Data)
		if err != nil {
			return err
		}
		return h.manager.ChooseExchangeReturn("", c.ID, data.Roles)
	}
	return errUnknownMessage
}

func (h *SocketHandler) username(c *Client, requested string) string {
	return utils.CleanName(requested, c.Username)
}

// sendError reports a rejection to the caller only.
func (h *SocketHandler) sendError(c *Client, err error) {
	h.hub.Publish(c.ID, internal.Message[internal.ErrorData]{
		Type: internal.MsgError,
		Data: internal.ErrorData{Message: err.Error()},
	})
}

// decode reads an optional payload. A missing payload yields the zero value.
func decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errBadPayload
	}
	return out, nil
}
