package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-api/internal/ws"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to websocket connections and attaches
// them to the availability broadcaster.
type Handler struct {
	broadcaster *ws.Broadcaster
	logger      zerolog.Logger
}

func NewHandler(broadcaster *ws.Broadcaster, logger zerolog.Logger) *Handler {
	return &Handler{broadcaster: broadcaster, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Subscribe)
}

// Subscribe upgrades the connection and registers the observer. The
// connection stays open until the client disconnects.
func (h *Handler) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.New().String(), conn)
	h.broadcaster.Connect(client)
	h.logger.Info().Str("client_id", client.ID).Msg("observer connected")

	go h.writePump(client, conn)
	go h.readPump(client, conn)
}

// readPump drains client frames until the connection dies, then
// detaches the observer.
func (h *Handler) readPump(client *ws.Client, conn *websocket.Conn) {
	defer func() {
		h.broadcaster.Disconnect(client)
		conn.Close()
		h.logger.Info().Str("client_id", client.ID).Msg("observer disconnected")
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", client.ID).Msg("websocket read error")
			}
			return
		}
	}
}

// writePump forwards queued broadcasts to the connection and keeps it
// alive with pings.
func (h *Handler) writePump(client *ws.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
