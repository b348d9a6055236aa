// Command ahdlc-bridge owns a single serial port running the AHDLC codec
// and re-exposes it to the rest of a system: a WebSocket feed of decoded
// frames, an optional Redis publish channel, a JSON status endpoint, and a
// periodically gob-snapshotted stats file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/BertoldVdb/ahdlc/gobpersist"
	"github.com/BertoldVdb/ahdlc/logrusconfig"
	"github.com/BertoldVdb/ahdlc/multirun"
	"github.com/BertoldVdb/ahdlc/multirunhttp"
	"github.com/BertoldVdb/ahdlc/serial"
	"github.com/BertoldVdb/ahdlc/serialpacket/framer/framerinterface"
	"github.com/BertoldVdb/ahdlc/serialpacket/framer/hdlc"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	portName     = flag.String("port", "/dev/ttyUSB0", "Serial port device to bridge")
	baudRate     = flag.Uint("baud", 115200, "Serial port baud rate")
	listenPort   = flag.Int("http", 8080, "HTTP/WebSocket listen port")
	maxPacketLen = flag.Int("maxpacket", 256, "Maximum AHDLC payload length in bytes")
	statsFile    = flag.String("statsfile", "", "File the link statistics are periodically saved to (gob-encoded). Counters start from zero on every start. Empty disables persistence")
	redisAddr    = flag.String("redis", "", "Redis server address (host:port). Empty disables Redis publishing")
	maxSessions  = flag.Int("maxsessions", 16, "Maximum number of concurrent WebSocket viewer sessions")
)

// frameEvent is what gets fanned out to WebSocket viewers and published to
// Redis: one decoded payload, tagged with the run ID so consumers can
// correlate it with the log stream.
type frameEvent struct {
	RunID     string    `json:"run_id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
}

// statusResponse is the JSON body served at /status.
type statusResponse struct {
	RunID string                    `json:"run_id"`
	Port  string                    `json:"port"`
	Stats framerinterface.BaseStats `json:"stats"`
	Last  *frameEvent               `json:"last_frame,omitempty"`
}

// frameHub fans decoded frames out to a bounded set of WebSocket viewers and
// keeps the most recent one around for /status. It replaces the slot-limited
// session pool and long-poll wait-for-update mechanism the bridge used
// before: viewers here are plain buffered channels, and a full channel just
// drops the frame for that one slow viewer rather than blocking the reader
// loop or the other viewers.
type frameHub struct {
	mu       sync.Mutex
	subs     map[chan frameEvent]struct{}
	maxSubs  int
	lastSeen *frameEvent
}

func newFrameHub(maxSubs int) *frameHub {
	return &frameHub{subs: make(map[chan frameEvent]struct{}), maxSubs: maxSubs}
}

// subscribe registers a new viewer, returning its feed channel. ok is false
// if the hub is already at capacity.
func (h *frameHub) subscribe() (ch chan frameEvent, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) >= h.maxSubs {
		return nil, false
	}

	ch = make(chan frameEvent, 8)
	h.subs[ch] = struct{}{}
	return ch, true
}

func (h *frameHub) unsubscribe(ch chan frameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// broadcast records fe as the most recent frame and offers it to every
// subscriber without blocking; a viewer whose buffer is already full misses
// it rather than stalling the decoder's read loop.
func (h *frameHub) broadcast(fe frameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSeen = &fe
	for ch := range h.subs {
		select {
		case ch <- fe:
		default:
		}
	}
}

func (h *frameHub) last() *frameEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeen
}

func main() {
	logrusconfig.InitParam()
	flag.Parse()

	log := logrusconfig.GetLogger(logrus.InfoLevel)
	runID := uuid.New().String()
	log = log.WithField("run_id", runID)

	port, err := serial.Open(&serial.PortOptions{
		PortName:      *portName,
		InterfaceRate: uint32(*baudRate),
		FlowControl:   false,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open serial port")
	}

	framer, err := hdlc.NewHDLCFramer(port, framerinterface.DefaultFramerOptions().
		Set(framerinterface.OptionMaxPacketLen, *maxPacketLen))
	if err != nil {
		log.WithError(err).Fatal("failed to construct framer")
	}

	var redisClient *redis.Client
	if *redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: *redisAddr})
	}

	stats := gobpersist.GobPersist{
		Filename:     *statsFile,
		Target:       &persistedStats{},
		SaveInterval: 10 * time.Second,
	}
	if err := stats.Load(); err != nil && *statsFile != "" {
		log.WithError(err).Debug("no prior stats snapshot to restore")
	}

	hub := newFrameHub(*maxSessions)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	var seq uint64

	// multirunhttp wraps http.DefaultServeMux in its own correlation-ID
	// logging middleware, so handlers are registered there rather than on
	// a private mux.
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			RunID: runID,
			Port:  *portName,
			Stats: framer.GetStats(),
			Last:  hub.last(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&resp)
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		feed, ok := hub.subscribe()
		if !ok {
			http.Error(w, "too many viewers", http.StatusServiceUnavailable)
			return
		}
		defer hub.unsubscribe(feed)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			select {
			case <-r.Context().Done():
				return
			case fe, open := <-feed:
				if !open {
					return
				}
				if err := conn.WriteJSON(&fe); err != nil {
					return
				}
			}
		}
	})

	var run multirun.MultiRun

	run.RegisterFunc(func() error {
		return framer.Run(func(payload []byte, metadata *framerinterface.PacketMetadata) error {
			seq++

			cp := make([]byte, len(payload))
			copy(cp, payload)

			fe := frameEvent{
				RunID:     runID,
				Sequence:  seq,
				Timestamp: metadata.RxTime,
				Payload:   cp,
			}
			hub.broadcast(fe)

			ps := stats.Target.(*persistedStats)
			ps.update(framer.GetStats())
			stats.SaveConditional(true)

			if redisClient != nil {
				encoded, err := json.Marshal(&fe)
				if err == nil {
					redisClient.Publish(context.Background(), "ahdlc-bridge:frames", encoded)
				}
			}

			return nil
		})
	}, func() error {
		return port.Close()
	})

	run.RegisterRunnable(&multirunhttp.MultiRunHTTP{
		Server:     &http.Server{},
		LoggerHTTP: log,
		ListenPort: *listenPort,
	})

	run.HandleSIGTERM()

	log.Infof("ahdlc-bridge starting on port %s, http listen :%d", *portName, *listenPort)
	if err := run.Run(nil); err != nil && err != multirun.ErrorClosed {
		log.WithError(err).Error("bridge stopped")
		if redisClient != nil {
			redisClient.Close()
		}
		os.Exit(1)
	}

	if redisClient != nil {
		redisClient.Close()
	}
	stats.Save()
}

// persistedStats is the gob-encoded shape saved to statsFile.
type persistedStats struct {
	Stats framerinterface.BaseStats
}

func (p *persistedStats) update(s framerinterface.BaseStats) {
	p.Stats = s
}
