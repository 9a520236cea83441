package server

import (
	"context"

	"github.com/mbocsi/cyberos/proto"
)

type HandlerKind uint8

const (
	HandlerFlag HandlerKind = iota + 1
	HandlerCallback
)

func (k HandlerKind) String() string {
	switch k {
	case HandlerFlag:
		return "flag"
	case HandlerCallback:
		return "callback"
	default:
		return "invalid"
	}
}

// Callback runs inline on the receive loop; the next frame is not read until it returns.
type Callback func(ctx context.Context, env proto.Envelope) error

// Handler is what a subscription resolves to: either a flag or a callback.
type Handler struct {
	kind     HandlerKind
	flag     *Signal
	callback Callback
}

func FlagHandler(s *Signal) Handler {
	return Handler{kind: HandlerFlag, flag: s}
}

func CallbackHandler(fn Callback) Handler {
	return Handler{kind: HandlerCallback, callback: fn}
}

func (h Handler) Kind() HandlerKind {
	return h.kind
}

func (h Handler) Flag() *Signal {
	return h.flag
}

func (h Handler) Callback() Callback {
	return h.callback
}

func (h Handler) valid() bool {
	switch h.kind {
	case HandlerFlag:
		return h.flag != nil
	case HandlerCallback:
		return h.callback != nil
	}
	return false
}
