// Package wstransport implements the WebSocket upgrade and framing layer
// of §6: each connection reads one command line per text frame from the
// client and writes batched clientupdate.Envelope JSON back.
package wstransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/world/clientupdate"
)

// MaxFrameBytes is the single-frame size cap §6 fixes for the wire
// protocol; larger inbound frames are rejected by the websocket library
// before a command line is ever assembled.
const MaxFrameBytes = 1024

// Conn is one accepted client connection.
type Conn struct {
	ws *websocket.Conn
}

// Accept upgrades an HTTP request to a WebSocket connection.
func Accept(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*Conn, error) {
	opts := &websocket.AcceptOptions{}
	if len(allowedOrigins) > 0 {
		opts.OriginPatterns = allowedOrigins
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(MaxFrameBytes)
	return &Conn{ws: c}, nil
}

// Close closes the connection with the given reason, best-effort.
func (c *Conn) Close(reason string) {
	_ = c.ws.Close(websocket.StatusNormalClosure, reason)
}

// CloseNow drops the connection immediately without a close handshake,
// for use on a failed/stuck connection.
func (c *Conn) CloseNow() {
	c.ws.CloseNow()
}

// ReadLine blocks for the next text frame (one command line) from the
// client.
func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// updateBatch is the single JSON object §6 requires per tick:
// `{"updates":[ClientUpdate,...]}`, never a bare top-level array.
type updateBatch struct {
	Updates []clientupdate.Envelope `json:"updates"`
}

// WriteUpdates marshals and sends one tick's worth of batched client
// updates as a single text frame (§5: updates coalesce per tick rather
// than flushing once per update).
func (c *Conn) WriteUpdates(ctx context.Context, updates []clientupdate.Update) error {
	envelopes := make([]clientupdate.Envelope, len(updates))
	for i, u := range updates {
		envelopes[i] = clientupdate.Envelope{Type: u.Type(), Payload: u}
	}
	data, err := json.Marshal(updateBatch{Updates: envelopes})
	if err != nil {
		return err
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Serve runs the read loop for one connection, calling onLine for each
// command received until the connection closes or ctx is canceled.
func Serve(ctx context.Context, c *Conn, onLine func(line string)) {
	for {
		line, err := c.ReadLine(ctx)
		if err != nil {
			logx.Debug("wstransport: connection closed", "err", err)
			return
		}
		onLine(line)
	}
}
