package canvas

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/canvas"
	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// frame is the wire envelope the sketchpad frame understands.
type frame struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

// Deliverer pushes a visual to the connected sketchpad, reporting whether
// the payload was handed to a live channel. Satisfied by *Gateway.
type Deliverer interface {
	Deliver(ctx context.Context, payload canvas.Payload) bool
}

// Gateway owns the lifecycle of sketchpad push-channels: it upgrades
// incoming connections, registers them at the default slot, and exposes
// best-effort delivery of visuals to whichever connection is live.
type Gateway struct {
	reg      *registry.Registry
	upgrader websocket.Upgrader
}

// NewGateway wires a gateway to the shared registry.
func NewGateway(reg *registry.Registry) *Gateway {
	return &Gateway{
		reg: reg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// conn serializes writes to a single websocket connection. gorilla allows
// at most one concurrent writer, and deliveries race with the ping loop.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *conn) Close() error {
	return c.ws.Close()
}

// HandleConnection upgrades the request and keeps the channel registered
// until the client goes away. Inbound frames carry no semantics yet; they
// are logged and dropped.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[sketchpad-ws] upgrade failed: %v", err)
		return
	}

	ch := &conn{ws: ws}
	g.reg.RegisterChannel(registry.SlotDefault, ch)
	defer func() {
		g.reg.UnregisterChannel(registry.SlotDefault, ch)
		ch.Close()
		log.Printf("[sketchpad-ws] disconnected")
	}()

	log.Printf("[sketchpad-ws] connected: %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go g.pingLoop(ctx, ch)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[sketchpad-ws] read error: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		log.Printf("[sketchpad-ws] received: %s", data)
	}
}

// Deliver sends the payload down the default slot's channel as a single
// data-URI frame. Returns false when no channel is registered or the
// write fails; the payload is dropped either way, never queued.
func (g *Gateway) Deliver(_ context.Context, payload canvas.Payload) bool {
	ch, ok := g.reg.Channel(registry.SlotDefault)
	if !ok {
		log.Printf("[sketchpad-send] no channel at slot %q (live slots: %d), dropping %d bytes",
			registry.SlotDefault, len(g.reg.Channels()), len(payload.Data))
		return false
	}

	msg := frame{
		Type:  "image",
		Image: payload.DataURI(),
	}
	if err := ch.WriteJSON(msg); err != nil {
		log.Printf("[sketchpad-send] write failed: %v", err)
		return false
	}

	log.Printf("[sketchpad-send] delivered image: %d bytes, type=%s", len(payload.Data), payload.MediaType)
	return true
}

func (g *Gateway) pingLoop(ctx context.Context, ch *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ch.ping(); err != nil {
				return
			}
		}
	}
}
