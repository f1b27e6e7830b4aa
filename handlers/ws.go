package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/trafficgrid/backend/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard origin is enforced at the edge
	},
}

// ServeWS handles GET /ws/events - upgrade a dashboard connection and attach it to
// the event hub. Every connected client receives every broadcast topic.
func (a *API) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := services.NewEventClient(a.hub, conn, c.GetString("userID"), c.Request.RemoteAddr)
	a.hub.Register(client)

	log.Printf("📡 Dashboard client connected from %s", c.Request.RemoteAddr)

	go client.WritePump()
	client.ReadPump()
}

// GetHubStats handles GET /api/ws/stats - connected dashboard clients
func (a *API) GetHubStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.hub.Stats())
}
