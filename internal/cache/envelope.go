package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/ulikunitz/xz"
)

// ErrCorrupt marks a durable entry whose envelope cannot be decoded.
// Readers treat such entries as misses; Cleanup removes them.
var ErrCorrupt = errors.New("corrupt cache envelope")

const (
	envelopeVersion = 1

	flagCompressed = 1 << 0

	// version + flags + storedAt + ttl
	envelopeHeaderLen = 2 + 8 + 8
)

// Entry is one durable-tier record. Payload is stored as written; whether it
// is xz-compressed is tracked in the envelope flags.
type Entry struct {
	Payload    []byte
	StoredAt   time.Time
	TTL        time.Duration
	Compressed bool
}

// ExpiresAt returns the instant the entry stops being served.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Expired reports whether the entry is past its TTL. A zero TTL never
// expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.ExpiresAt())
}

// encodeEnvelope serializes an entry to the durable wire form: a two-byte
// version/flags header, storedAt and TTL as big-endian nanosecond counts,
// then the payload.
func encodeEnvelope(e Entry) []byte {
	buf := make([]byte, envelopeHeaderLen+len(e.Payload))
	buf[0] = envelopeVersion
	if e.Compressed {
		buf[1] |= flagCompressed
	}
	binary.BigEndian.PutUint64(buf[2:], uint64(e.StoredAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[10:], uint64(e.TTL))
	copy(buf[envelopeHeaderLen:], e.Payload)
	return buf
}

// decodeEnvelope parses the durable wire form.
func decodeEnvelope(raw []byte) (Entry, error) {
	if len(raw) < envelopeHeaderLen {
		return Entry{}, ErrCorrupt
	}
	if raw[0] != envelopeVersion {
		return Entry{}, ErrCorrupt
	}
	storedAt := int64(binary.BigEndian.Uint64(raw[2:]))
	ttl := time.Duration(binary.BigEndian.Uint64(raw[10:]))

	payload := make([]byte, len(raw)-envelopeHeaderLen)
	copy(payload, raw[envelopeHeaderLen:])

	return Entry{
		Payload:    payload,
		StoredAt:   time.Unix(0, storedAt),
		TTL:        ttl,
		Compressed: raw[1]&flagCompressed != 0,
	}, nil
}

// compressPayload xz-compresses data.
func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCorrupt
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrCorrupt
	}
	return out, nil
}
