package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/playcities/citiesgame/game/registry"
	"github.com/playcities/citiesgame/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per client; a client that falls this far behind is
	// treated as a failed recipient.
	sendBufferSize = 64
)

var errSlowClient = errors.New("websocket: client send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The game protocol carries no credentials, so any origin may
		// connect.
		return true
	},
}

// Handler upgrades HTTP requests and runs one Client per websocket
// connection. Websocket clients speak the same envelope protocol as TCP
// clients; the transport provides message framing, so no newline handling
// is needed here.
type Handler struct {
	registry *registry.Registry
}

// NewHandler creates the /ws endpoint handler.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		reg:  h.registry,
		send: make(chan []byte, sendBufferSize),
	}

	go client.writePump()
	client.readPump()
}

// Client is one websocket connection acting as a registry connection.
type Client struct {
	id   string
	conn *websocket.Conn
	reg  *registry.Registry
	send chan []byte

	mu     sync.Mutex
	player string
	closed bool
}

// Send implements registry.Conn. Delivery is asynchronous through the send
// buffer; a full buffer means the client cannot keep up and the send is
// reported failed rather than blocking the broadcast.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("websocket: connection closed")
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errSlowClient
	}
}

// readPump reads envelopes from the peer and dispatches them. It returns
// on any read error, tearing the connection down as an implicit leave.
func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket: client %s: read error: %v", c.id, err)
			}
			return
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			c.Send(protocol.NewError("malformed message"))
			continue
		}

		// One identity per connection: a second join would orphan the
		// first name in the registry, since teardown unbinds only one
		// player.
		if cmd.Command == protocol.CmdJoin {
			if bound := c.boundPlayer(); bound != "" {
				c.Send(protocol.NewError(fmt.Sprintf("connection already joined as %s", bound)))
				continue
			}
		}

		reply := c.reg.Dispatch(cmd, c)
		c.trackBinding(cmd, reply)
		if err := c.Send(reply); err != nil {
			log.Printf("websocket: client %s: reply failed: %v", c.id, err)
		}
	}
}

// boundPlayer returns the player this connection currently speaks for, or
// "" before a successful join and after a leave.
func (c *Client) boundPlayer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

// writePump drains the send buffer to the peer and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func (c *Client) trackBinding(cmd *protocol.Command, reply any) {
	if _, ok := reply.(protocol.Success); !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd.Command {
	case protocol.CmdJoin:
		c.player = cmd.PlayerName
	case protocol.CmdLeave:
		c.player = ""
	}
}

// teardown runs the implicit leave for the bound player, then closes the
// send channel so the write pump exits.
func (c *Client) teardown() {
	c.mu.Lock()
	player := c.player
	c.player = ""
	c.mu.Unlock()

	if player != "" {
		c.reg.Unregister(player)
		log.Printf("websocket: client %s: player %q disconnected", c.id, player)
	}

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	c.conn.Close()
}
