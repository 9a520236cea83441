// Package airhub relays radio frames between simulated devices over
// websockets, so devices on different hosts share one medium.
//
// A station connects with ?mac=AA:BB:CC:DD:EE:FF and exchanges binary
// messages: dst(6) || payload towards the hub, src(6) || payload from it.
package airhub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbocsi/cyberos/proto"
)

const addrLen = len(proto.MAC{})

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Stations are not browsers
	},
}

type StationInfo struct {
	ID       string    `json:"id"`
	MAC      string    `json:"mac"`
	Remote   string    `json:"remote"`
	JoinedAt time.Time `json:"joined_at"`
	Frames   uint64    `json:"frames"`
}

type station struct {
	id       string
	mac      proto.MAC
	remote   string
	joinedAt time.Time
	conn     *websocket.Conn
	wmu      sync.Mutex
	frames   uint64
}

func (s *station) send(src proto.MAC, payload []byte) error {
	msg := make([]byte, 0, addrLen+len(payload))
	msg = append(msg, src[:]...)
	msg = append(msg, payload...)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.BinaryMessage, msg)
}

type Hub struct {
	Addr   string
	server *http.Server

	mu          sync.RWMutex
	stations    map[proto.MAC]*station
	maxStations int
	running     bool
}

func NewHub(addr string) *Hub {
	return &Hub{
		Addr:        addr,
		stations:    make(map[proto.MAC]*station),
		maxStations: 64,
	}
}

func (h *Hub) SetMaxStations(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxStations = n
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleWebSocket)
	return mux
}

func (h *Hub) Start() error {
	slog.Info("Starting air hub", "addr", h.Addr)

	h.mu.Lock()
	h.server = &http.Server{Addr: h.Addr, Handler: h.Handler()}
	h.running = true
	srv := h.server
	h.mu.Unlock()

	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *Hub) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down air hub", "addr", h.Addr)

	h.mu.Lock()
	h.running = false
	srv := h.server
	conns := make([]*websocket.Conn, 0, len(h.stations))
	for _, st := range h.stations {
		conns = append(conns, st.conn)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	mac, err := proto.ParseMAC(r.URL.Query().Get("mac"))
	if err != nil || mac.IsZero() || mac.IsBroadcast() {
		http.Error(w, "mac query parameter must be a unicast hardware address", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	_, taken := h.stations[mac]
	count := len(h.stations)
	h.mu.RUnlock()
	if taken {
		http.Error(w, "hardware address already on the air", http.StatusConflict)
		return
	}
	if count >= h.maxStations {
		slog.Warn("Max stations reached, rejecting connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "air hub full", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	st := &station{
		id:       "air-" + uuid.NewString(),
		mac:      mac,
		remote:   r.RemoteAddr,
		joinedAt: time.Now(),
		conn:     conn,
	}
	if !h.register(st) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "address taken"))
		conn.Close()
		return
	}
	go h.handleStation(st)
}

func (h *Hub) register(st *station) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.stations[st.mac]; taken {
		return false
	}
	h.stations[st.mac] = st
	return true
}

func (h *Hub) handleStation(st *station) {
	slog.Info("Station joined the air", "id", st.id, "mac", st.mac.String(), "addr", st.remote)

	defer func() {
		h.mu.Lock()
		if cur, ok := h.stations[st.mac]; ok && cur == st {
			delete(h.stations, st.mac)
		}
		h.mu.Unlock()
		st.conn.Close()
		slog.Info("Station left the air", "id", st.id, "mac", st.mac.String())
	}()

	for {
		kind, msg, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("Station connection error", "id", st.id, "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage || len(msg) < addrLen {
			slog.Warn("Dropping invalid air message", "id", st.id, "size", len(msg))
			continue
		}
		var dst proto.MAC
		copy(dst[:], msg[:addrLen])
		h.relay(st, dst, msg[addrLen:])
	}
}

func (h *Hub) relay(src *station, dst proto.MAC, payload []byte) {
	h.mu.Lock()
	src.frames++
	var targets []*station
	if dst.IsBroadcast() {
		for mac, st := range h.stations {
			if mac != src.mac {
				targets = append(targets, st)
			}
		}
	} else if st, ok := h.stations[dst]; ok {
		targets = append(targets, st)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		slog.Debug("No station for frame", "from", src.mac.String(), "to", dst.String())
		return
	}
	for _, st := range targets {
		if err := st.send(src.mac, payload); err != nil {
			slog.Warn("Failed to relay frame", "to", st.mac.String(), "error", err)
		}
	}
}

// Stations lists connected stations.
func (h *Hub) Stations() []StationInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make([]StationInfo, 0, len(h.stations))
	for _, st := range h.stations {
		res = append(res, StationInfo{
			ID:       st.id,
			MAC:      st.mac.String(),
			Remote:   st.remote,
			JoinedAt: st.joinedAt,
			Frames:   st.frames,
		})
	}
	return res
}
