package webstream

import (
	"net/http"
	"time"

	"github.com/phuslu/log"
	"nhooyr.io/websocket"

	"nuha.dev/safetracker/internal/hub"
)

// WebstreamServer is the live-update channel: every websocket connection
// is one hub viewer, and every published reading is forwarded verbatim.
type WebstreamServer struct {
	server *http.Server
	log    log.Logger
	hub    *hub.Hub
	config WebstreamConfig
}

type WebstreamConfig struct {
	ListenAddr string
	ViewerBuf  int
}

func NewWebstream(h *hub.Hub, config WebstreamConfig) *WebstreamServer {
	o := &WebstreamServer{config: config, hub: h}
	o.server = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        http.HandlerFunc(o.serve_http),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "websocket").Value()
	return o
}

func (ws *WebstreamServer) Run() {
	ws.log.Info().Msgf("starting ws-server on : %s", ws.server.Addr)
	err := ws.server.ListenAndServe()
	if err != nil {
		ws.log.Error().Err(err).Msg("")
		panic(err)
	}
}

func (ws *WebstreamServer) serve_http(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		ws.log.Error().Err(err).Msg("Error while upgrading websocket")
		return
	}
	defer c.Close(websocket.StatusInternalError, "the sky is falling")

	v := ws.hub.Subscribe(ws.config.ViewerBuf)
	defer ws.hub.Unsubscribe(v)
	ws.log.Info().Str("viewer", v.Key()).Msg("viewer connected")

	// viewers only listen; CloseRead pumps the connection and cancels the
	// context when the peer goes away
	ctx := c.CloseRead(r.Context())
	for {
		select {
		case d := <-v.C():
			err := c.Write(ctx, websocket.MessageText, d)
			if err != nil {
				ws.log.Info().Err(err).Str("viewer", v.Key()).Msg("viewer dropped")
				return
			}
		case <-ctx.Done():
			ws.log.Info().Str("viewer", v.Key()).Msg("viewer disconnected")
			return
		}
	}
}
