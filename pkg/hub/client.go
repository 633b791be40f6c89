package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames; viewers only send control frames
	maxMessageSize = 4 * 1024

	// sendBuffer is how many texts a viewer may lag before it is dropped
	sendBuffer = 64
)

// Client is one dashboard browser or watch connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	done chan struct{} // closed when writePump returns
}

// NewClient creates a new client and registers it with the hub.
// It returns nil if the hub has been stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
	select {
	case hub.register <- client:
		return client
	case <-hub.quit:
		return nil
	}
}

// Run pumps messages until the connection closes. Call it from the
// websocket handler; it blocks until both pumps are done, since the
// handler's conn is recycled once the handler returns.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
	<-c.done
}

// readPump only drains the connection: viewers never send anything, but
// reading is how close frames and pongs arrive.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub stopped or dropped us
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// JSON and display text both go out as text frames
			if err := c.conn.WriteMessage(websocket.TextMessage, message.Data); err != nil {
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
