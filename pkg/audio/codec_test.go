package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMuLawKnownValues(t *testing.T) {
	// 0xFF encodes positive zero, 0x7F negative zero
	assert.Equal(t, int16(0), DecodeMuLawSample(0xFF))
	assert.Equal(t, int16(0), DecodeMuLawSample(0x7F))

	// 0x80 is the maximum positive magnitude, 0x00 the maximum negative
	assert.Equal(t, int16(32124), DecodeMuLawSample(0x80))
	assert.Equal(t, int16(-32124), DecodeMuLawSample(0x00))
}

func TestDecodeALawKnownValues(t *testing.T) {
	assert.Equal(t, int16(-8), DecodeALawSample(0x55))
	assert.Equal(t, int16(8), DecodeALawSample(0xD5))

	// Maximum magnitudes
	assert.Equal(t, int16(-32256), DecodeALawSample(0x2A))
	assert.Equal(t, int16(32256), DecodeALawSample(0xAA))
}

func TestDecodeL16(t *testing.T) {
	samples, err := Decode(CodecL16, []byte{0x34, 0x12, 0x00, 0x80})
	require.NoError(t, err)
	assert.Equal(t, []int16{0x1234, -32768}, samples)

	_, err = Decode(CodecL16, []byte{0x01})
	assert.Error(t, err)
}

func TestDecodeUnsupportedCodec(t *testing.T) {
	_, err := Decode(Codec("OPUS"), []byte{0x00})
	assert.Error(t, err)
}

func TestPCM16BytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out, err := Decode(CodecL16, PCM16Bytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNormalizeRange(t *testing.T) {
	norm := Normalize([]int16{-32768, 0, 32767})
	assert.Equal(t, -1.0, norm[0])
	assert.Equal(t, 0.0, norm[1])
	assert.InDelta(t, 1.0, norm[2], 0.001)
}
