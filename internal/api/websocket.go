package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/middleware"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Stream message types
const (
	MessageEvent   = "event"
	MessageExplode = "explode"
	MessageZoom    = "zoom"
	MessageResize  = "resize"
	MessageLayout  = "layout"
	MessageError   = "error"
)

// StreamRequest is a client message on a session stream
type StreamRequest struct {
	Type         string          `json:"type"`
	Event        *lollipop.Event `json:"event,omitempty"`
	Track        string          `json:"track,omitempty"`
	NodeID       string          `json:"node_id,omitempty"`
	ProteinRange *lollipop.Range `json:"protein_range,omitempty"`
	Width        float64         `json:"width,omitempty"`
}

// StreamResponse is a server message on a session stream
type StreamResponse struct {
	Type    string              `json:"type"`
	Changed bool                `json:"changed,omitempty"`
	Session *domain.SessionInfo `json:"session,omitempty"`
	Error   *domain.APIError    `json:"error,omitempty"`
}

func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// handleSessionStream upgrades to a WebSocket carrying events in and layouts
// out. The current layout is sent on connect.
func (s *Server) handleSessionStream(c *gin.Context) {
	id := c.Param("id")
	info, err := s.sessions.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", id).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	requestID := c.GetString(middleware.CorrelationIDKey)
	logger := s.logger.WithFields(logrus.Fields{"session_id": id, "correlation_id": requestID})
	logger.Debug("Session stream opened")

	if err := writeMessage(conn, StreamResponse{Type: MessageLayout, Session: info}); err != nil {
		return
	}

	for {
		var msg StreamRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Session stream closed unexpectedly")
			}
			return
		}

		resp := s.dispatch(id, &msg, requestID)
		if err := writeMessage(conn, resp); err != nil {
			logger.WithError(err).Debug("Failed to write stream message")
			return
		}
		if resp.Error != nil && resp.Error.Code == domain.ErrSessionNotFound {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Server) dispatch(id string, msg *StreamRequest, requestID string) StreamResponse {
	var (
		info    *domain.SessionInfo
		changed = true
		err     error
	)
	switch msg.Type {
	case MessageEvent:
		if msg.Event == nil {
			err = domain.NewValidationError("event", "event is required", nil)
			break
		}
		info, changed, err = s.sessions.HandleEvent(id, *msg.Event)
	case MessageExplode:
		info, err = s.sessions.Explode(id, msg.Track, msg.NodeID)
	case MessageZoom:
		info, err = s.sessions.Zoom(id, msg.ProteinRange)
	case MessageResize:
		info, err = s.sessions.Resize(id, msg.Width)
	default:
		err = domain.NewValidationError("type", "unknown message type", msg.Type)
	}
	if err != nil {
		resp, _ := domain.ErrorResponse(err, requestID)
		return StreamResponse{Type: MessageError, Error: resp}
	}
	return StreamResponse{Type: MessageLayout, Changed: changed, Session: info}
}

func writeMessage(conn *websocket.Conn, resp StreamResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(resp)
}
