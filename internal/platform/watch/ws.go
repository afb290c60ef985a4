package watch

import (
	"encoding/json"
	"net/http"
	"sync"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ClientMessage is an inbound subscribe/unsubscribe request from a client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Authorizer decides whether the current request may subscribe to a topic.
// It is consulted per topic; unauthorized topics are silently dropped so a
// client cannot probe for the existence of other tenants' data.
type Authorizer func(c echo.Context, topic string) bool

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer.
	},
}

// WSHandler bridges bus subscriptions to WebSocket clients.
type WSHandler struct {
	bus       *Bus
	authorize Authorizer
	logger    zerolog.Logger
}

// NewWSHandler creates a handler bound to the given bus. authorize must not
// be nil.
func NewWSHandler(bus *Bus, authorize Authorizer, logger zerolog.Logger) *WSHandler {
	return &WSHandler{bus: bus, authorize: authorize, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect)
}

// client tracks one WebSocket connection and the bus subscriptions it owns.
// Teardown of the connection closes every nested subscription.
type client struct {
	mu   sync.Mutex
	send chan []byte
	subs map[string]*Subscription
	done chan struct{}
}

func (cl *client) subscribe(bus *Bus, topic string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, ok := cl.subs[topic]; ok {
		return
	}
	sub := bus.Subscribe(topic)
	cl.subs[topic] = sub

	go func() {
		for ev := range sub.C {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case cl.send <- data:
			case <-cl.done:
				return
			default:
				// Client buffer full; skip to avoid blocking.
			}
		}
	}()
}

func (cl *client) unsubscribe(topic string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if sub, ok := cl.subs[topic]; ok {
		sub.Close()
		delete(cl.subs, topic)
	}
}

func (cl *client) closeAll() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for topic, sub := range cl.subs {
		sub.Close()
		delete(cl.subs, topic)
	}
	close(cl.done)
}

// HandleConnect upgrades the connection and starts the read/write pumps.
func (h *WSHandler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		send: make(chan []byte, 256),
		subs: make(map[string]*Subscription),
		done: make(chan struct{}),
	}

	go h.writePump(cl, ws)
	go h.readPump(c, cl, ws)

	return nil
}

func (h *WSHandler) readPump(c echo.Context, cl *client, ws *gorillawebsocket.Conn) {
	defer func() {
		cl.closeAll()
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		switch msg.Action {
		case "subscribe":
			for _, topic := range msg.Topics {
				if !h.authorize(c, topic) {
					h.logger.Warn().Str("topic", topic).Msg("subscription rejected")
					continue
				}
				cl.subscribe(h.bus, topic)
			}
		case "unsubscribe":
			for _, topic := range msg.Topics {
				cl.unsubscribe(topic)
			}
		}
	}
}

func (h *WSHandler) writePump(cl *client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for {
		select {
		case message := <-cl.send:
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}
