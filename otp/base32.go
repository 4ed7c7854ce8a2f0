package otp

import (
	"fmt"
	"strings"
)

// RFC 4648 §6 alphabet.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// DecodeError reports the first byte of a Base32 string that falls outside
// the RFC 4648 alphabet.
type DecodeError struct {
	Char byte
	Pos  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("base32: invalid character %q at position %d", e.Char, e.Pos)
}

// EncodeBase32 encodes src using the RFC 4648 Base32 alphabet with '='
// padding to an 8-character boundary.
func EncodeBase32(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow((len(src) + 4) / 5 * 8)

	var acc uint32
	var bits uint
	for _, c := range src {
		acc = acc<<8 | uint32(c)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b.WriteByte(base32Alphabet[(acc>>bits)&0x1f])
		}
	}
	if bits > 0 {
		b.WriteByte(base32Alphabet[(acc<<(5-bits))&0x1f])
	}
	for b.Len()%8 != 0 {
		b.WriteByte('=')
	}

	return b.String()
}

// DecodeBase32 decodes an RFC 4648 Base32 string. Decoding is
// case-insensitive and tolerates missing or embedded '=' padding, which
// covers secrets hand-typed from authenticator app enrollment screens.
// Any byte outside the alphabet yields a [*DecodeError].
func DecodeBase32(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8)

	var acc uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			continue
		}

		var v uint32
		switch {
		case c >= 'A' && c <= 'Z':
			v = uint32(c - 'A')
		case c >= 'a' && c <= 'z':
			v = uint32(c - 'a')
		case c >= '2' && c <= '7':
			v = uint32(c-'2') + 26
		default:
			return nil, &DecodeError{Char: c, Pos: i}
		}

		acc = acc<<5 | v
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}

	// Trailing bits are encoder zero-padding and carry no payload.
	return out, nil
}
