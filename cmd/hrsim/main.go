package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// hrsim is a local stand-in for the HypeRate service: it serves an overlay
// page embedding a websocket key and a Phoenix-style socket that publishes
// random heart-rate frames. Point pulsed at it for development without a
// real sensor.

var (
	addr     = flag.String("addr", "localhost:8090", "Listen address")
	interval = flag.Duration("interval", time.Second, "Delay between heart-rate frames")
	baseBPM  = flag.Int("bpm", 75, "Baseline heart rate to wander around")
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><title>hrsim overlay</title></head>
<script>
  var websocketKey = 'hrsim-local-key';
</script>
<body>simulated overlay page</body>
</html>
`

type socketFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     int64           `json:"ref"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping simulator...")
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", servePage)
	mux.HandleFunc("/socket/websocket", func(w http.ResponseWriter, r *http.Request) {
		serveSocket(ctx, w, r)
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Simulator listening on http://%s (socket at ws://%s/socket/websocket)", *addr, *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Simulator stopped.")
}

func servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(pageTemplate))
}

// serveSocket speaks just enough of the Phoenix channel protocol for one
// client: it acknowledges joins and heartbeats and streams hr_update frames
// on the joined topic.
func serveSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("Client connected from %s", r.RemoteAddr)

	// The ack path and the stream ticker both write to conn; the websocket
	// allows only one writer at a time.
	var writeMu sync.Mutex

	topics := make(chan string, 1)

	// Reader goroutine: ack joins and heartbeats, report the joined topic.
	go func() {
		defer close(topics)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame socketFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Printf("Ignoring unparseable frame: %v", err)
				continue
			}
			if frame.Event == "phx_join" {
				select {
				case topics <- frame.Topic:
				default:
				}
			}
			reply := map[string]any{
				"topic":   frame.Topic,
				"event":   "phx_reply",
				"payload": map[string]any{"status": "ok", "response": map[string]any{}},
				"ref":     frame.Ref,
			}
			if err := writeFrame(conn, &writeMu, reply); err != nil {
				return
			}
		}
	}()

	var topic string
	select {
	case topic = <-topics:
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
		log.Printf("Client %s never joined a channel, dropping", r.RemoteAddr)
		return
	}
	log.Printf("Client %s joined %s, streaming at %s intervals", r.RemoteAddr, topic, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	bpm := *baseBPM

	for {
		select {
		case <-ticker.C:
			bpm = nextBPM(rng, bpm, *baseBPM)
			frame := map[string]any{
				"topic":   topic,
				"event":   "hr_update",
				"payload": map[string]any{"hr": bpm},
				"ref":     nil,
			}
			if err := writeFrame(conn, &writeMu, frame); err != nil {
				log.Printf("Client %s gone: %v", r.RemoteAddr, err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, mu *sync.Mutex, frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// nextBPM takes a small random step, drifting back toward the baseline and
// occasionally spiking the way a real rate does under effort.
func nextBPM(rng *rand.Rand, current, baseline int) int {
	step := rng.Intn(5) - 2 // -2..+2
	if current > baseline {
		step--
	} else if current < baseline {
		step++
	}
	if rng.Float64() < 0.02 { // occasional spike
		step += 15 + rng.Intn(20)
	}
	next := current + step
	if next < 40 {
		next = 40
	}
	if next > 200 {
		next = 200
	}
	return next
}
