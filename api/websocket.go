package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var statusStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin surface is same-origin tooling, not a public endpoint;
	// origin checking is left to whatever reverse proxy fronts it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveStatusStream upgrades to a websocket and pushes a Counters
// snapshot every tick until the client disconnects or ctx is canceled.
func (s *Server) serveStatusStream(c *gin.Context) {
	conn, err := statusStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := s.mgr.Registry().Snapshot()
			payload, err := json.Marshal(snapshot)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
