package relay

import (
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nuha.dev/safetracker/internal/hub"
)

// Relay republishes every hub broadcast to a NATS subject so consumers
// outside the process (other dashboards, archivers) can follow the live
// stream without holding a websocket here.
type Relay struct {
	logger zerolog.Logger
	config RelayConfig
	hub    *hub.Hub
	nc     *nats.Conn
}

type RelayConfig struct {
	URL     string
	Subject string
}

func NewRelay(h *hub.Hub, config RelayConfig) *Relay {
	rl := &Relay{config: config, hub: h}
	rl.logger = log.With().Str("module", "relay").Logger()
	return rl
}

// Run connects and forwards until the process exits. Publish errors are
// logged and the affected reading skipped; the relay is just another
// best-effort viewer.
func (rl *Relay) Run() {
	nc, err := nats.Connect(rl.config.URL)
	if err != nil {
		rl.logger.Err(err).Msg("unable to connect to nats")
		return
	}
	rl.nc = nc
	v := rl.hub.Subscribe(64)
	defer rl.hub.Unsubscribe(v)
	rl.logger.Info().Str("subject", rl.config.Subject).Msg("relay started")
	for d := range v.C() {
		err := nc.Publish(rl.config.Subject, d)
		if err != nil {
			rl.logger.Err(err).Msg("publish failed")
		}
	}
}
