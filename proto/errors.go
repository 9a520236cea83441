package proto

import "errors"

var (
	ErrMalformedFrame = errors.New("proto: malformed frame")
	ErrFieldTooLong   = errors.New("proto: field exceeds length prefix")
	ErrMalformedOffer = errors.New("proto: malformed pairing offer")
)
