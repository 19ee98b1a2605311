package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mustafaturan/bus/v3"
	"github.com/mustafaturan/monoton/v2"
	"github.com/mustafaturan/monoton/v2/sequencer"
	"github.com/phuslu/log"

	"nuha.dev/safetracker/internal/util"
)

const topicReading = "reading.stored"

// Viewer is one connected live consumer. Pushes never block: when the
// buffer is full the event is dropped for that viewer only and it catches
// up through the recent-readings query after reconnecting.
type Viewer struct {
	key     string
	ch      chan []byte
	pushed  uint64
	dropped uint64
}

func (v *Viewer) Key() string {
	return v.key
}

// C is the viewer's delivery stream, in publish order.
func (v *Viewer) C() <-chan []byte {
	return v.ch
}

func (v *Viewer) push(d []byte) {
	select {
	case v.ch <- d:
		atomic.AddUint64(&v.pushed, 1)
	default:
		atomic.AddUint64(&v.dropped, 1)
	}
}

func (v *Viewer) Stat() (pushed uint64, dropped uint64) {
	return atomic.LoadUint64(&v.pushed), atomic.LoadUint64(&v.dropped)
}

// Hub owns the viewer registry and fans every published reading out to all
// currently subscribed viewers. Dispatch runs on a bus with one handler
// per viewer, so a failing viewer never reaches the others.
type Hub struct {
	mu      sync.Mutex
	b       *bus.Bus
	viewers map[string]*Viewer
	log     log.Logger
}

func NewHub() *Hub {
	m, err := monoton.New(sequencer.NewMillisecond(), 1, 0)
	if err != nil {
		panic(err)
	}
	var next bus.Next = m.Next
	b, err := bus.NewBus(next)
	if err != nil {
		panic(err)
	}
	b.RegisterTopics(topicReading)

	o := &Hub{b: b}
	o.viewers = make(map[string]*Viewer)
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "hub").Value()
	return o
}

// Subscribe registers a new viewer. The viewer only observes readings
// published after this call; history comes from the query side.
func (h *Hub) Subscribe(buf int) *Viewer {
	if buf <= 0 {
		buf = 16
	}
	v := &Viewer{key: util.GenUUID(), ch: make(chan []byte, buf)}
	h.mu.Lock()
	h.viewers[v.key] = v
	h.b.RegisterHandler(v.key, bus.Handler{
		Matcher: topicReading,
		Handle: func(ctx context.Context, e bus.Event) {
			v.push(e.Data.([]byte))
		},
	})
	h.mu.Unlock()
	h.log.Debug().Str("viewer", v.key).Msg("viewer subscribed")
	return v
}

// Unsubscribe deregisters a viewer. Idempotent, safe after the underlying
// connection is already gone. The viewer channel stays open so a delivery
// racing with removal lands in the buffer instead of panicking.
func (h *Hub) Unsubscribe(v *Viewer) {
	if v == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.viewers[v.key]
	if ok {
		delete(h.viewers, v.key)
		h.b.DeregisterHandler(v.key)
	}
	h.mu.Unlock()
	if ok {
		pushed, dropped := v.Stat()
		h.log.Debug().Str("viewer", v.key).Uint64("pushed", pushed).Uint64("dropped", dropped).Msg("viewer unsubscribed")
	}
}

// Publish delivers d to every currently subscribed viewer. Publishes are
// serialized under the hub lock so all viewers observe them in the same
// order; delivery itself never blocks.
func (h *Hub) Publish(d []byte) {
	h.mu.Lock()
	err := h.b.Emit(context.Background(), topicReading, d)
	h.mu.Unlock()
	if err != nil {
		h.log.Error().Err(err).Msg("emit failed")
	}
}

func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}
