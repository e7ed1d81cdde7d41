package realtime

import (
	"time"

	"TaskFlow/logger"

	"github.com/gorilla/websocket"
)

const firstPingDelay = 5 * time.Second

// Client ties one session to its websocket. The write pump is the only
// goroutine that writes to the socket; the read loop only reads.
type Client struct {
	Sess *Session
	WS   *websocket.Conn

	pingInterval time.Duration
	writeWait    time.Duration
}

func NewClient(sess *Session, ws *websocket.Conn, pingInterval, writeWait time.Duration) *Client {
	return &Client{Sess: sess, WS: ws, pingInterval: pingInterval, writeWait: writeWait}
}

// WritePump drains the session queue and keeps the connection alive
// with pings. It exits when the session is closed or a write fails,
// and always closes the socket so the read loop unblocks.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	first := time.NewTimer(firstPingDelay)
	defer func() {
		ticker.Stop()
		first.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(c.writeWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.WS.Close()
		logger.Debugf("[ws] writer closed conn=%s user=%s", c.Sess.ConnID, c.Sess.User.UserID)
	}()

	for {
		select {
		case <-c.Sess.Closed():
			return

		case payload := <-c.Sess.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err conn=%s user=%s err=%v", c.Sess.ConnID, c.Sess.User.UserID, err)
				return
			}

		case <-first.C:
			// first ping delayed so a fresh connection is not hit with
			// an immediate write deadline
			if err := c.ping(); err != nil {
				logger.Infof("[ws] first ping err conn=%s err=%v", c.Sess.ConnID, err)
				return
			}

		case <-ticker.C:
			if err := c.ping(); err != nil {
				logger.Infof("[ws] ping err conn=%s err=%v", c.Sess.ConnID, err)
				return
			}
		}
	}
}

func (c *Client) ping() error {
	_ = c.WS.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeWait))
}
