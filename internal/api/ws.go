package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary dev origins; the gateway has no
	// auth layer of its own.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProxyDeps is everything a proxied voice session needs.
type ProxyDeps struct {
	Dialer       realtime.Dialer
	Registry     *realtime.Registry
	Instructions realtime.InstructionsFunc
	DefaultModel string
	Log          zerolog.Logger
}

// wsProxyHandler upgrades the client connection and hands it to a session
// supervisor, which owns it until the session is fully closed.
func wsProxyHandler(deps ProxyDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		session := realtime.NewSession(conn, deps.Dialer, deps.Registry, deps.Instructions, deps.DefaultModel, deps.Log)
		if err := session.Run(r.Context()); err != nil {
			deps.Log.Error().Err(err).Str("session_id", session.ID.String()).Msg("session ended with error")
		}
	}
}
