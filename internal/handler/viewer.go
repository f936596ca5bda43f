package handler

import (
	"context"
	"net/http"
	"time"

	"facewatch/internal/logger"
	viewer "facewatch/internal/services/websocket"

	"github.com/gorilla/websocket"
)

const registerTimeout = 5 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers viewer connections in the hub so they
// receive annotated frames as binary JPEG messages.
func ViewWebsocketHandler(hub *viewer.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		ctx, cancel := context.WithTimeout(r.Context(), registerTimeout)
		registered := hub.Register(ctx, connection)
		cancel()
		if !registered {
			logger.Warning("Viewer hub not running, closing connection")
			connection.Close()
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
			defer cancel()
			hub.Unregister(ctx, connection)
		}()

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected normally")
				} else {
					logger.Debug("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
