package proto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Reserved event names.
const (
	EventPairingOffer  = "pairing-offer"
	EventPing          = "ping"
	EventPong          = "pong"
	EventChannelChange = "ch-change"
)

// Envelope is one decoded event frame.
type Envelope struct {
	Sender   string   // logical name of the originating device, e.g. "BUTTON-02AD9A-YYG"
	Receiver string   // empty means public (every listener)
	Name     string   // event name, e.g. "ping"
	Args     [][]byte // opaque positional arguments
}

// IsPublic reports whether the envelope is addressed to everyone.
func (e Envelope) IsPublic() bool {
	return e.Receiver == ""
}

// Clone returns a deep copy so the caller may hold on to it past the next frame.
func (e Envelope) Clone() Envelope {
	out := e
	if e.Args != nil {
		out.Args = make([][]byte, len(e.Args))
		for i, a := range e.Args {
			out.Args[i] = append([]byte(nil), a...)
		}
	}
	return out
}

// MAC is a radio hardware address.
type MAC [6]byte

// BroadcastMAC is the reserved "everyone" address used for pairing offers.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (m MAC) String() string {
	return strings.ToUpper(fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5]))
}

func (m MAC) IsZero() bool {
	return m == MAC{}
}

func (m MAC) IsBroadcast() bool {
	return m == BroadcastMAC
}

// ParseMAC accepts "AA:BB:CC:DD:EE:FF", "aa-bb-..." or the bare 12 hex digit form.
func ParseMAC(s string) (MAC, error) {
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != 12 {
		return MAC{}, fmt.Errorf("proto: invalid mac %q", s)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return MAC{}, fmt.Errorf("proto: invalid mac %q: %w", s, err)
	}
	var m MAC
	copy(m[:], raw)
	return m, nil
}

// MACFromBytes converts a 6 byte slice, as carried in pairing offers.
func MACFromBytes(b []byte) (MAC, error) {
	if len(b) != len(MAC{}) {
		return MAC{}, fmt.Errorf("proto: mac must be 6 bytes, got %d", len(b))
	}
	var m MAC
	copy(m[:], b)
	return m, nil
}

// PairingOffer is the payload of the reserved pairing-offer event.
type PairingOffer struct {
	MAC     MAC   // private (station) address of the offering device
	Channel uint8 // channel its private traffic uses
}

func (o PairingOffer) Args() [][]byte {
	return [][]byte{o.MAC[:], {o.Channel}}
}

func ParsePairingOffer(args [][]byte) (PairingOffer, error) {
	if len(args) < 2 {
		return PairingOffer{}, fmt.Errorf("%w: want 2 args, got %d", ErrMalformedOffer, len(args))
	}
	mac, err := MACFromBytes(args[0])
	if err != nil {
		return PairingOffer{}, fmt.Errorf("%w: %v", ErrMalformedOffer, err)
	}
	if len(args[1]) != 1 {
		return PairingOffer{}, fmt.Errorf("%w: channel must be 1 byte, got %d", ErrMalformedOffer, len(args[1]))
	}
	return PairingOffer{MAC: mac, Channel: args[1][0]}, nil
}

// Pixel palette letters used in color codes.
var colorLetters = []byte("RGBYCMWO")

// GenerateColorCode picks three palette letters, e.g. "YYG".
func GenerateColorCode() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "WWW"
	}
	out := make([]byte, 3)
	for i := range b {
		out[i] = colorLetters[int(b[i])%len(colorLetters)]
	}
	return string(out)
}

// DeviceName builds the unique device id from its type, hardware id and color code.
func DeviceName(deviceType, hardwareID, colorCode string) string {
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(deviceType), strings.ToUpper(hardwareID), strings.ToUpper(colorCode))
}
