package util

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
)

// NewID returns an opaque random identifier, optionally prefixed.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewResetCode returns a random numeric code of the given number of
// digits, zero-padded. Codes come from crypto/rand so they are not
// guessable from earlier codes.
func NewResetCode(digits int) string {
	if digits <= 0 {
		digits = 6
	}
	max := uint64(1)
	for i := 0; i < digits; i++ {
		max *= 10
	}
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	n := binary.BigEndian.Uint64(buf[:]) % max
	code := strconv.FormatUint(n, 10)
	if len(code) < digits {
		code = strings.Repeat("0", digits-len(code)) + code
	}
	return code
}
