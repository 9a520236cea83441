package proto

import (
	"encoding/binary"
	"fmt"
)

// Every field is a 2 byte big-endian length followed by the raw bytes:
//
//	frame := field(sender) field(receiver) field(name) field(arg)*
const (
	PrefixLen   = 2
	MaxFieldLen = 1<<16 - 1
)

// Encode serializes an envelope into a radio frame.
func Encode(env Envelope) ([]byte, error) {
	size := 3 * PrefixLen
	fixed := [...]struct {
		name string
		val  string
	}{{"sender", env.Sender}, {"receiver", env.Receiver}, {"name", env.Name}}

	for _, f := range fixed {
		if len(f.val) > MaxFieldLen {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrFieldTooLong, f.name, len(f.val))
		}
		size += len(f.val)
	}
	for i, a := range env.Args {
		if len(a) > MaxFieldLen {
			return nil, fmt.Errorf("%w: arg %d is %d bytes", ErrFieldTooLong, i, len(a))
		}
		size += PrefixLen + len(a)
	}

	buf := make([]byte, 0, size)
	for _, f := range fixed {
		buf = appendField(buf, []byte(f.val))
	}
	for _, a := range env.Args {
		buf = appendField(buf, a)
	}
	return buf, nil
}

// MustEncode is Encode for frames whose fields are known to fit.
func MustEncode(env Envelope) []byte {
	b, err := Encode(env)
	if err != nil {
		panic(err)
	}
	return b
}

func appendField(buf, val []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(val)))
	return append(buf, val...)
}

// Decode parses a radio frame. The three leading fields are mandatory; every
// remaining field is an argument.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	i := 0

	next := func(what string) ([]byte, error) {
		if len(data)-i < PrefixLen {
			return nil, fmt.Errorf("%w: short %s length at offset %d", ErrMalformedFrame, what, i)
		}
		l := int(binary.BigEndian.Uint16(data[i : i+PrefixLen]))
		i += PrefixLen
		if len(data)-i < l {
			return nil, fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrMalformedFrame, what, l, len(data)-i)
		}
		val := make([]byte, l)
		copy(val, data[i:i+l])
		i += l
		return val, nil
	}

	sender, err := next("sender")
	if err != nil {
		return Envelope{}, err
	}
	receiver, err := next("receiver")
	if err != nil {
		return Envelope{}, err
	}
	name, err := next("name")
	if err != nil {
		return Envelope{}, err
	}
	env.Sender, env.Receiver, env.Name = string(sender), string(receiver), string(name)

	for n := 0; i < len(data); n++ {
		arg, err := next(fmt.Sprintf("arg %d", n))
		if err != nil {
			return Envelope{}, err
		}
		env.Args = append(env.Args, arg)
	}
	return env, nil
}
