// Package wsgateway exposes a transport.Hub over a gorilla/websocket
// connection, grounded on the teacher's wsClient/handleWebSocket
// (internal/api/server.go): one JSON message per WriteJSON/ReadJSON
// call, one goroutine per connection reading inbound control messages
// until the socket closes.
package wsgateway

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mtste/engine/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) Send(out transport.Out) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(out)
}

func (c *client) Close() error {
	return c.conn.Close()
}

// Gateway upgrades HTTP connections to websockets and feeds them into a
// Hub.
type Gateway struct {
	hub *transport.Hub
}

func New(hub *transport.Hub) *Gateway {
	return &Gateway{hub: hub}
}

// ServeHTTP implements http.Handler so a Gateway can be registered
// directly with http.Handle("/ws", gateway) (§6 control plane).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsgateway: upgrade: %v", err)
		return
	}

	c := &client{conn: conn}
	g.hub.AddClient(c)
	defer g.hub.RemoveClient(c)

	ctx := r.Context()
	for {
		var in transport.In
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if err := g.hub.Dispatch(ctx, c.Send, in); err != nil {
			log.Printf("wsgateway: dispatch %s: %v", in.Kind, err)
		}
	}
}
