package airhub

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/cyberos/proto"
)

var ErrNotConnected = errors.New("airhub: radio is not connected")

// WSRadio is a radio whose medium is an air hub. Unicast frames to stations
// the hub does not know are dropped silently, so Transmit never reports a
// missing acknowledgement.
type WSRadio struct {
	hubURL string
	mac    proto.MAC

	mu     sync.RWMutex
	conn   *websocket.Conn
	onRecv func(src proto.MAC, data []byte, rssi int)

	wmu  sync.Mutex
	done chan struct{}
}

func NewWSRadio(hubURL string, mac proto.MAC) *WSRadio {
	return &WSRadio{hubURL: hubURL, mac: mac}
}

func (r *WSRadio) Open() error {
	u, err := url.Parse(r.hubURL)
	if err != nil {
		return fmt.Errorf("invalid air hub URL: %w", err)
	}
	switch u.Scheme {
	case "", "tcp":
		u.Scheme = "ws"
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("mac", r.mac.String())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to air hub: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.readLoop(conn, done)
	slog.Info("Joined air hub", "url", u.Host, "mac", r.mac.String())
	return nil
}

func (r *WSRadio) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("Air hub connection error", "error", err)
			}
			return
		}
		if len(msg) < addrLen {
			slog.Warn("Dropping short air message", "size", len(msg))
			continue
		}
		var src proto.MAC
		copy(src[:], msg[:addrLen])

		r.mu.RLock()
		fn := r.onRecv
		r.mu.RUnlock()
		if fn != nil {
			fn(src, msg[addrLen:], 0)
		}
	}
}

func (r *WSRadio) SetReceiveCallback(fn func(src proto.MAC, data []byte, rssi int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecv = fn
}

func (r *WSRadio) Transmit(dst proto.MAC, data []byte) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg := make([]byte, 0, addrLen+len(data))
	msg = append(msg, dst[:]...)
	msg = append(msg, data...)

	r.wmu.Lock()
	defer r.wmu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return fmt.Errorf("failed to send air frame: %w", err)
	}
	return nil
}

func (r *WSRadio) Address() proto.MAC {
	return r.mac
}

func (r *WSRadio) Close() error {
	r.mu.Lock()
	conn, done := r.conn, r.done
	r.conn = nil
	r.mu.Unlock()
	if conn == nil {
		return nil
	}

	r.wmu.Lock()
	err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.wmu.Unlock()
	if err != nil {
		slog.Warn("Failed to send close message", "error", err)
	}
	cerr := conn.Close()
	<-done
	return cerr
}
