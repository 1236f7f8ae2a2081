package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/overchat/overchat/internal/protocol"
)

// Conn is one live full-duplex connection to the backend message source.
type Conn interface {
	ReadEnvelope() (protocol.Envelope, error)
	WriteEnvelope(protocol.Envelope) error
	Close() error
}

// Transport opens connections to the backend source, addressed by the
// resolved routing identifier for a channel.
type Transport interface {
	Dial(ctx context.Context, route string) (Conn, error)
}

// WebsocketTransport dials the backend over websocket at BaseURL/<route>.
type WebsocketTransport struct {
	// BaseURL is the websocket endpoint prefix, e.g. "ws://backend:8080/channels".
	BaseURL string

	// Dialer overrides websocket.DefaultDialer when set.
	Dialer *websocket.Dialer

	// Header is sent with the handshake request.
	Header http.Header
}

func (t *WebsocketTransport) Dial(ctx context.Context, route string) (Conn, error) {
	d := t.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	u := strings.TrimRight(t.BaseURL, "/") + "/" + url.PathEscape(route)
	ws, resp, err := d.DialContext(ctx, u, t.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &wsConn{ws: ws}, nil
}

// wsConn adapts a gorilla connection to the Conn interface. Writes are
// serialized; gorilla allows only one concurrent writer.
type wsConn struct {
	ws  *websocket.Conn
	wmu sync.Mutex
}

func (c *wsConn) ReadEnvelope() (protocol.Envelope, error) {
	var env protocol.Envelope
	err := c.ws.ReadJSON(&env)
	return env, err
}

func (c *wsConn) WriteEnvelope(env protocol.Envelope) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(env)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
