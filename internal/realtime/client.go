package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	chatsvc "github.com/EduShopX/edushop/internal/app/services/chat"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	storeTimeout   = 5 * time.Second
)

// Error frames sent back to the sender.
var (
	frameBadPayload       = []byte(`{"error":"bad_payload"}`)
	framePermissionDenied = []byte(`{"error":"permission_denied"}`)
	frameServerError      = []byte(`{"error":"server_error"}`)
	frameInvalidAction    = []byte(`{"error":"invalid_action"}`)
)

// Outbound is the broadcast form of a chat message.
type Outbound struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one websocket connection joined to a room group.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	sub       *redis.PubSub
	principal auth.Principal
	roomID    int64
	group     string

	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue hands msg to the write pump. A full buffer means the peer is not
// reading; the connection is dropped.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.server.log.WithField("room", c.roomID).
			WithField("user_id", c.principal.UserID).
			Warn("dropping slow websocket consumer")
		c.close()
		return false
	}
}

// readPump reads frames until the peer goes away or the client is closed.
// The write pump closes the connection once the client is done.
func (c *Client) readPump() {
	defer func() {
		c.server.hub.leave(c)
		c.close()
		_ = c.sub.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.log.WithError(err).WithField("room", c.roomID).Warn("unexpected websocket close")
			}
			return
		}
		if !c.handleFrame(data) {
			return
		}
	}
}

// handleFrame processes one inbound frame. It reports false once the
// connection should end.
func (c *Client) handleFrame(data []byte) bool {
	if !gjson.ValidBytes(data) {
		c.enqueue(frameInvalidAction)
		return true
	}
	frame := gjson.ParseBytes(data)
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch frame.Get("action").String() {
	case "message":
		text := frame.Get("message")
		if text.Type != gjson.String || text.String() == "" {
			c.enqueue(frameBadPayload)
			return true
		}
		c.postMessage(ctx, text.String())
		return true
	case "close_chat":
		if err := c.server.rooms.CloseRoom(ctx, c.roomID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.server.log.WithError(err).WithField("room", c.roomID).Error("close chat room")
		}
		c.close()
		return false
	default:
		c.enqueue(frameInvalidAction)
		return true
	}
}

func (c *Client) postMessage(ctx context.Context, text string) {
	msg, err := c.server.rooms.SaveLiveMessage(ctx, c.principal, c.roomID, text)
	if err != nil {
		if errors.Is(err, chatsvc.ErrPermission) {
			c.enqueue(framePermissionDenied)
			return
		}
		c.server.log.WithError(err).WithField("room", c.roomID).Error("store chat message")
		c.enqueue(frameServerError)
		return
	}
	payload, err := json.Marshal(Outbound{ID: msg.ID, Content: msg.Content, Sender: msg.Sender, Timestamp: msg.Timestamp})
	if err != nil {
		c.enqueue(frameServerError)
		return
	}
	// The message is stored; a failed broadcast only loses the live copy.
	if err := c.server.channels.Publish(ctx, c.group, payload); err != nil {
		c.server.log.WithError(err).WithField("room", c.roomID).Error("broadcast chat message")
	}
}

// forward copies group messages into the send buffer.
func (c *Client) forward() {
	ch := c.sub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			if !c.enqueue([]byte(m.Payload)) {
				return
			}
		case <-c.done:
			return
		}
	}
}

// writePump is the only writer of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still buffered before the close frame.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
