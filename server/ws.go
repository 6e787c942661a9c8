package server

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/semsearch/gateway/src/gateway"
)

var upgrader = websocket.FastHTTPUpgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *fasthttp.RequestCtx) bool { return true },
}

// webSocketHandler returns the raw fasthttp handler for WebSocket upgrades.
// Connection ids are assigned here, at connect time, and stay opaque to the
// client.
func (s *Server) webSocketHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		connectionID := uuid.New().String()
		userAgent := string(ctx.Request.Header.UserAgent())

		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := gateway.NewClient(connectionID, conn, s.gw, userAgent)
			s.gw.Register(client)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}
