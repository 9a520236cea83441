package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func sameEnvelope(a, b Envelope) bool {
	if a.Sender != b.Sender || a.Receiver != b.Receiver || a.Name != b.Name || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !bytes.Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Envelope{
		{Sender: "BUTTON-02AD9A-YYG", Receiver: "", Name: "ping"},
		{Sender: "BUTTON-02AD9A-YYG", Receiver: "DISPLAY-0F889A-ABW", Name: "on_press", Args: [][]byte{{0x01}, []byte("Hello World!")}},
		{Sender: "A", Receiver: "B", Name: "empty-arg", Args: [][]byte{{}, {0x00, 0xff}}},
		{Sender: "", Receiver: "", Name: ""},
		{Sender: "A", Name: EventPairingOffer, Args: PairingOffer{MAC: MAC{1, 2, 3, 4, 5, 6}, Channel: 13}.Args()},
		{Sender: strings.Repeat("s", MaxFieldLen), Name: "max", Args: [][]byte{bytes.Repeat([]byte{7}, MaxFieldLen)}},
	}

	for _, in := range cases {
		data, err := Encode(in)
		if err != nil {
			t.Fatalf("encode %q: %v", in.Name, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %q: %v", in.Name, err)
		}
		if !sameEnvelope(in, out) {
			t.Errorf("Round trip mismatch for %q: got %+v", in.Name, out)
		}
	}
}

func TestEncode_FieldLayout(t *testing.T) {
	data, err := Encode(Envelope{Sender: "AB", Receiver: "", Name: "x", Args: [][]byte{{9, 9, 9}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0, 2, 'A', 'B', 0, 0, 0, 1, 'x', 0, 3, 9, 9, 9}
	if !bytes.Equal(data, want) {
		t.Errorf("Expected %v, got %v", want, data)
	}
}

func TestEncode_FieldTooLong(t *testing.T) {
	long := strings.Repeat("n", MaxFieldLen+1)

	if _, err := Encode(Envelope{Sender: "A", Name: long}); !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("Expected ErrFieldTooLong for name, got %v", err)
	}
	if _, err := Encode(Envelope{Sender: "A", Name: "x", Args: [][]byte{make([]byte, MaxFieldLen+1)}}); !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("Expected ErrFieldTooLong for arg, got %v", err)
	}
}

func TestMustEncode_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustEncode to panic on oversized field")
		}
	}()
	MustEncode(Envelope{Receiver: strings.Repeat("r", MaxFieldLen+1)})
}

func TestDecode_TruncatedInsideField(t *testing.T) {
	in := Envelope{Sender: "BUTTON-02AD9A-YYG", Receiver: "DISPLAY-0F889A-ABW", Name: "on_press", Args: [][]byte{[]byte("abc"), []byte("defgh")}}
	data := MustEncode(in)

	// Offsets where a field (and therefore a valid frame) ends.
	boundaries := map[int]bool{}
	off := 0
	fields := [][]byte{[]byte(in.Sender), []byte(in.Receiver), []byte(in.Name), in.Args[0], in.Args[1]}
	for i, f := range fields {
		off += PrefixLen + len(f)
		if i >= 2 {
			boundaries[off] = true
		}
	}

	for cut := 0; cut < len(data); cut++ {
		out, err := Decode(data[:cut])
		if boundaries[cut] {
			if err != nil {
				t.Errorf("cut=%d: expected valid frame at field boundary, got %v", cut, err)
				continue
			}
			if out.Sender != in.Sender || out.Receiver != in.Receiver || out.Name != in.Name {
				t.Errorf("cut=%d: fixed fields misparsed: %+v", cut, out)
			}
			continue
		}
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("cut=%d: expected ErrMalformedFrame, got %v (%+v)", cut, err, out)
		}
	}
}

func TestDecode_LengthOverflowsBuffer(t *testing.T) {
	var data []byte
	data = appendField(data, []byte("A"))
	data = appendField(data, []byte(""))
	data = binary.BigEndian.AppendUint16(data, 200)
	data = append(data, []byte("hello")...)

	_, err := Decode(data)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("Expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_ArgsDoNotAliasInput(t *testing.T) {
	data := MustEncode(Envelope{Sender: "A", Name: "x", Args: [][]byte{{1, 2, 3}}})
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(out.Args[0], []byte{1, 2, 3}) {
		t.Errorf("Decoded arg changed with input buffer: %v", out.Args[0])
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(MustEncode(Envelope{Sender: "A", Receiver: "B", Name: "ping"}))
	f.Add(MustEncode(Envelope{Sender: "A", Name: EventPairingOffer, Args: PairingOffer{MAC: BroadcastMAC, Channel: 1}.Args()}))
	f.Add([]byte{0, 200, 1})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		env, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		again, err := Encode(env)
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if !bytes.Equal(again, data) {
			t.Fatalf("re-encoded frame differs: %v vs %v", again, data)
		}
	})
}
