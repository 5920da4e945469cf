package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/qr-dine/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSController struct {
	Hub *hub.Hub
}

func NewWSController(h *hub.Hub) *WSController {
	return &WSController{Hub: h}
}

// Subscribe -> GET /ws/:room. Session rooms (QR_SESSION_*) and the CUSTOMER
// room are open; the STAFF room requires an authenticated staff/admin role.
func (wc *WSController) Subscribe(c *gin.Context) {
	room := c.Param("room")

	if room == hub.RoomStaff {
		roleInterface, exists := c.Get("role")
		if !exists {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		role := roleInterface.(string)
		if role != "staff" && role != "admin" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	} else if room != hub.RoomCustomer && !strings.HasPrefix(room, "QR_SESSION_") {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	wc.Hub.Register(ws, room)

	// Drain the connection until the client goes away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	wc.Hub.Unregister(ws)
}
