package relay

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Maximum frame size accepted from a peer
	maxFrameSize = 64 * 1024
)

// Client is one relay connection. Conversation fields are set once by init.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	joined   bool
	key      conversation
	sender   string
	receiver string
	token    string

	RemoteAddr  string
	ConnectedAt time.Time
}

func newClient(conn *websocket.Conn, remoteAddr string) *Client {
	conn.SetReadLimit(maxFrameSize)
	return &Client{conn: conn, RemoteAddr: remoteAddr, ConnectedAt: time.Now()}
}

// write sends v as a JSON text frame. Safe for concurrent use.
func (c *Client) write(ctx context.Context, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}
