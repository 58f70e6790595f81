package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the monitor stream
const (
	// Client -> Server messages
	MsgTypePing     = "ping"
	MsgTypeSnapshot = "snapshot"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeBatch     = "batch"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const (
	wsSendQueue   = 64
	wsWriteWait   = 10 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsPongTimeout = 2 * wsPingPeriod
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSBatchPayload carries one delivered batch, newest message first.
type WSBatchPayload struct {
	Messages []models.UnifiedMessage `json:"messages"`
	Count    int                     `json:"count"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Allow connections from dev server
			return true
		},
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
}

// HandleMonitorStream upgrades to a WebSocket and pushes every batch the
// monitor delivers. A client that falls behind loses batches rather than
// stalling delivery. The optional snapshot query parameter sends up to that
// many buffered messages first.
func (h *MonitorHandlerImpl) HandleMonitorStream(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log := logging.WithComponent("ws")
	log.Debug().Str("remote", c.RealIP()).Msg("monitor client connected")

	out := make(chan WSMessage, wsSendQueue)
	done := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)

	unsubscribe := h.monitor.Subscribe(func(batch []models.UnifiedMessage) {
		msg, err := newWSMessage(MsgTypeBatch, h.monitor.Status().SessionID, WSBatchPayload{Messages: batch, Count: len(batch)})
		if err != nil {
			return
		}
		select {
		case out <- msg:
		default:
			log.Warn().Int("messages", len(batch)).Msg("monitor client too slow, batch dropped")
		}
	})
	defer unsubscribe()

	if msg, err := newWSMessage(MsgTypeConnected, "", h.monitor.Status()); err == nil {
		sendMessage(ws, msg)
	}
	if n, err := strconv.Atoi(c.QueryParam("snapshot")); err == nil && n > 0 {
		sendMessage(ws, h.snapshot(n))
	}

	// Reader: the only goroutine reading from ws.
	go func() {
		defer close(done)
		ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("monitor client read failed")
				}
				return
			}

			var reply WSMessage
			switch msg.Type {
			case MsgTypePing:
				reply = WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()}
			case MsgTypeSnapshot:
				reply = h.snapshot(0)
			default:
				reply, _ = newWSMessage(MsgTypeError, msg.ID, WSErrorResponse{
					Type:    MsgTypeError,
					Message: "Unknown message type: " + msg.Type,
					Code:    "INVALID_TYPE",
				})
			}
			select {
			case out <- reply:
			case <-quit:
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	// Writer: the only goroutine writing to ws.
	for {
		select {
		case <-done:
			log.Debug().Msg("monitor client disconnected")
			return nil
		case msg := <-out:
			if err := sendMessage(ws, msg); err != nil {
				return nil
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func (h *MonitorHandlerImpl) snapshot(n int) WSMessage {
	status := h.monitor.Status()
	msgs := h.monitor.Messages(n)
	msg, _ := newWSMessage(MsgTypeSnapshot, status.SessionID, WSBatchPayload{Messages: msgs, Count: len(msgs)})
	return msg
}

func newWSMessage(msgType, id string, payload interface{}) (WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{
		Type:      msgType,
		ID:        id,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// sendMessage writes a message to the WebSocket
func sendMessage(ws *websocket.Conn, msg WSMessage) error {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.WriteJSON(msg)
}
