package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/models"
)

// WebSocket message types for the date-range protocol
const (
	// Client -> Server messages
	MsgTypeRangeSet   = "range:set"
	MsgTypeRangeReset = "range:reset"
	MsgTypePing       = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeResult    = "result"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsRequestTimeout = 30 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// RangePayload carries an optional date range. Empty bounds leave that side
// open; range:reset ignores both.
type RangePayload struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes recomputed KPIs as a dashboard moves its date
// range, without re-sending the filtered rows.
type WebSocketHandler struct {
	datasets DatasetService
	loc      *time.Location
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket range handler. An empty
// allowOrigins accepts every origin.
func NewWebSocketHandler(datasets DatasetService, loc *time.Location, allowOrigins []string, logger *zap.Logger) *WebSocketHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WebSocketHandler{
		datasets: datasets,
		loc:      loc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowOrigins),
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger: logging.OrNop(logger).With(zap.String("component", "websocket")),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the connection and serves range requests for the
// dataset in the path until the client disconnects
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws, logger: wsh.logger}
	wsh.logger.Debug("client connected", zap.String("dataset", id), zap.String("remote", c.RealIP()))
	conn.send(WSMessage{Type: MsgTypeConnected})

	ctx := c.Request().Context()
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.logger.Warn("connection error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		case MsgTypeRangeSet, MsgTypeRangeReset:
			wsh.handleRange(ctx, conn, id, msg)
		default:
			conn.sendError(msg.ID, "unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	wsh.logger.Debug("client disconnected")
	return nil
}

func (wsh *WebSocketHandler) handleRange(ctx context.Context, conn *wsConn, id string, msg WSMessage) {
	var r models.DateRange
	if msg.Type == MsgTypeRangeSet {
		var payload RangePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				conn.sendError(msg.ID, "invalid range payload: "+err.Error(), "INVALID_PAYLOAD")
				return
			}
		}
		var err error
		r, err = models.ParseDateRange(payload.Start, payload.End, wsh.loc)
		if err != nil {
			conn.sendError(msg.ID, err.Error(), "BAD_REQUEST")
			return
		}
	}

	ctx, cancel := context.WithTimeout(ctx, wsRequestTimeout)
	defer cancel()

	res, err := wsh.datasets.Filtered(ctx, id, r)
	if err != nil {
		apiErr := datasetError(err, id)
		conn.sendError(msg.ID, apiErr.Message, apiErr.Code)
		return
	}
	wsh.datasets.Touch(id)

	conn.send(WSMessage{
		Type:    MsgTypeResult,
		ID:      msg.ID,
		Payload: mustJSON(summarize(id, res)),
	})
}

// wsConn serializes writes to one connection.
type wsConn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	logger *zap.Logger
}

func (c *wsConn) send(msg WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Warn("failed to send message", zap.Error(err))
	}
}

func (c *wsConn) sendError(id, message, code string) {
	c.send(WSMessage{
		Type: MsgTypeError,
		ID:   id,
		Payload: mustJSON(WSErrorResponse{
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
