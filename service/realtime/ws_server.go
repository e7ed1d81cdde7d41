package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"TaskFlow/logger"
	"TaskFlow/middleware/security"
	"TaskFlow/tools/errs"
	"TaskFlow/tools/ids"
	"TaskFlow/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// inboundFrame is the small client->server protocol: room membership
// changes and explicit heartbeats. Everything else flows server->client.
type inboundFrame struct {
	Action    string `json:"action"` // subscribe | unsubscribe | ping
	ProjectID string `json:"projectId,omitempty"`
}

// HandleWS authenticates the handshake, upgrades, registers the
// session and runs the read loop. Every exit path funnels through one
// deferred Unregister, so close/error/idle-timeout races cannot leak a
// session.
func (s *Server) HandleWS(c *gin.Context) {
	claims, err := security.ClaimsFromRequest(c.Request, []byte(s.conf.JWTSecret))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errs.ErrAuthRequired.Msg})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	connID := ids.GenerateString()
	sess, err := s.reg.Register(connID, Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
	})
	if err != nil {
		logger.Warnf("[ws] register conn=%s err=%v", connID, err)
		_ = ws.Close()
		return
	}
	defer s.reg.Unregister(connID)

	// a client may open the socket straight onto one project room
	if projectID := c.Query("project"); projectID != "" {
		if err := s.reg.Subscribe(connID, projectID); err != nil {
			logger.Infof("[ws] subscribe conn=%s project=%s err=%v", connID, projectID, err)
		}
	}

	ws.SetPongHandler(func(string) error {
		_ = s.reg.Touch(connID) // session may already be swept
		_ = ws.SetReadDeadline(time.Now().Add(s.conf.WS.IdleTTL))
		return nil
	})
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.WS.IdleTTL))

	client := NewClient(sess, ws, s.conf.WS.PingInterval, s.conf.WS.WriteWait)
	safe.Go(client.WritePump)

	logger.Infof("[ws] connected conn=%s user=%s", connID, claims.UserID)
	s.readLoop(connID, ws)
	logger.Infof("[ws] disconnected conn=%s user=%s", connID, claims.UserID)
}

func (s *Server) readLoop(connID string, ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s err=%v", connID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Debugf("[ws] read timeout conn=%s err=%v", connID, err)
			} else {
				logger.Debugf("[ws] read err conn=%s err=%v", connID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		_ = s.reg.Touch(connID)
		_ = ws.SetReadDeadline(time.Now().Add(s.conf.WS.IdleTTL))

		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Debugf("[ws] bad frame conn=%s sample=%q", connID, sample)
			continue
		}

		switch f.Action {
		case "subscribe":
			if f.ProjectID == "" {
				continue
			}
			if err := s.reg.Subscribe(connID, f.ProjectID); err != nil {
				// stale conn racing a sweep: expected, not fatal
				logger.Infof("[ws] subscribe conn=%s project=%s err=%v", connID, f.ProjectID, err)
			}
		case "unsubscribe":
			if f.ProjectID == "" {
				continue
			}
			if err := s.reg.Unsubscribe(connID, f.ProjectID); err != nil {
				logger.Infof("[ws] unsubscribe conn=%s project=%s err=%v", connID, f.ProjectID, err)
			}
		case "ping":
			// touch already done above
		default:
			logger.Debugf("[ws] unknown action %q conn=%s", f.Action, connID)
		}
	}
}
