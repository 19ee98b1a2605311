package devsrv

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"

	"nuha.dev/safetracker/internal/ingest"
	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

const maxLineSize = 4096

// Server accepts raw TCP device connections carrying newline-delimited
// JSON readings and feeds them through the same ingest path as HTTP.
// A rejected reading does not kill the connection; a read error does.
type Server struct {
	log         log.Logger
	ing         *ingest.Service
	config      *ServerConfig
	cid_counter uint64
}

type ServerConfig struct {
	ListenerAddr string
}

func NewServer(ing *ingest.Service, config *ServerConfig) *Server {
	s := &Server{}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "device-server").Value()
	s.ing = ing
	s.config = config
	return s
}

func (s *Server) Run() {
	s.log.Info().Msgf("starting device-server on %s", s.config.ListenerAddr)
	ln, err := net.Listen("tcp", s.config.ListenerAddr)
	if err != nil {
		s.log.Error().Err(err).Msg("unable to listen")
		return
	}
	pln := proxyproto.Listener{Listener: ln}
	for {
		_c, err := pln.Accept()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to accept new connection")
			pln.Close()
			return
		}
		cid := atomic.AddUint64(&s.cid_counter, 1)
		c := NewConn(_c, cid)
		s.log.Info().EmbedObject(c).Msg("new device connection")
		go s.handle(c)
	}
}

func (s *Server) handle(c *Conn) {
	defer c.Close()
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, maxLineSize), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		_, err := s.ing.Ingest(context.Background(), line)
		if err != nil {
			if errors.Is(err, reading.ErrInvalidCoordinates) || errors.Is(err, reading.ErrBadPayload) {
				s.log.Warn().Err(err).Uint64("cid", c.cid).Msg("rejected device reading")
			} else if errors.Is(err, store.ErrUnavailable) {
				// the device re-sends; the core does not retry
				s.log.Error().Err(err).Uint64("cid", c.cid).Msg("dropping reading, store unavailable")
			} else {
				s.log.Error().Err(err).Uint64("cid", c.cid).Msg("")
			}
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Info().Err(err).Uint64("cid", c.cid).Msg("device connection closed")
	}
}
