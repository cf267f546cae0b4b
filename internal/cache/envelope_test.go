package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	in := Entry{
		Payload:    []byte("payload bytes"),
		StoredAt:   time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC),
		TTL:        90 * time.Second,
		Compressed: true,
	}

	out, err := decodeEnvelope(encodeEnvelope(in))
	require.NoError(t, err)
	assert.Equal(t, in.Payload, out.Payload)
	assert.True(t, in.StoredAt.Equal(out.StoredAt), "nanosecond precision survives")
	assert.Equal(t, in.TTL, out.TTL)
	assert.True(t, out.Compressed)
}

func TestEnvelope_EmptyPayload(t *testing.T) {
	t.Parallel()

	out, err := decodeEnvelope(encodeEnvelope(Entry{StoredAt: time.Unix(0, 0)}))
	require.NoError(t, err)
	assert.Empty(t, out.Payload)
	assert.False(t, out.Compressed)
}

func TestEnvelope_Corrupt(t *testing.T) {
	t.Parallel()

	_, err := decodeEnvelope(nil)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeEnvelope([]byte("short"))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Unknown version byte.
	raw := encodeEnvelope(Entry{Payload: []byte("x"), StoredAt: time.Now()})
	raw[0] = 0xFF
	_, err = decodeEnvelope(raw)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEntry_Expired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := Entry{StoredAt: now, TTL: time.Minute}

	assert.False(t, entry.Expired(now))
	assert.False(t, entry.Expired(now.Add(time.Minute)), "boundary instant still valid")
	assert.True(t, entry.Expired(now.Add(time.Minute+time.Nanosecond)))

	forever := Entry{StoredAt: now, TTL: 0}
	assert.False(t, forever.Expired(now.AddDate(10, 0, 0)))
}

func TestCompression_RoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("abcdefgh"), 1024)

	packed, err := compressPayload(payload)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(payload))

	unpacked, err := decompressPayload(packed)
	require.NoError(t, err)
	assert.Equal(t, payload, unpacked)

	_, err = decompressPayload([]byte("not xz data"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDigest_StableAndBounded(t *testing.T) {
	t.Parallel()

	a := digest("search:term=ecommerce&page=1")
	b := digest("search:term=ecommerce&page=1")
	c := digest("search:term=ecommerce&page=2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "hex sha-256")
}
