package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID generates an identifier of the form prefix-<unix millis>-<random>.
// The random part is the first eight hex digits of a v4 UUID.
func NewID(prefix string) string {
	return newIDAt(prefix, time.Now())
}

func newIDAt(prefix string, now time.Time) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(random)
	return b.String()
}

// Fingerprint is a 64-bit content digest.
type Fingerprint uint64

// FingerprintOf hashes data with BLAKE2b truncated to 64 bits.
// Identical content always produces an identical fingerprint.
func FingerprintOf(data []byte) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}
