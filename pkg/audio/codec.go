package audio

import "fmt"

// Codec identifies the telephony payload encoding of an audio chunk.
type Codec string

const (
	// CodecPCMU is G.711 mu-law (RTP payload type 0)
	CodecPCMU Codec = "PCMU"
	// CodecPCMA is G.711 a-law (RTP payload type 8)
	CodecPCMA Codec = "PCMA"
	// CodecL16 is raw 16-bit little-endian PCM
	CodecL16 Codec = "L16"
)

const (
	muLawBias = 0x84
	segMask   = 0x70
	segShift  = 4
	quantMask = 0x0F
	signBit   = 0x80
)

// DecodeMuLawSample expands one G.711 mu-law byte to a linear 16-bit sample.
func DecodeMuLawSample(b byte) int16 {
	b = ^b
	t := (int16(b&quantMask) << 3) + muLawBias
	t <<= (b & segMask) >> segShift
	if b&signBit != 0 {
		return muLawBias - t
	}
	return t - muLawBias
}

// DecodeALawSample expands one G.711 a-law byte to a linear 16-bit sample.
func DecodeALawSample(b byte) int16 {
	b ^= 0x55
	t := int16(b&quantMask) << 4
	seg := (b & segMask) >> segShift
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if b&signBit != 0 {
		return t
	}
	return -t
}

// Decode expands a compressed telephony payload to linear 16-bit samples.
func Decode(codec Codec, payload []byte) ([]int16, error) {
	switch codec {
	case CodecPCMU:
		samples := make([]int16, len(payload))
		for i, b := range payload {
			samples[i] = DecodeMuLawSample(b)
		}
		return samples, nil
	case CodecPCMA:
		samples := make([]int16, len(payload))
		for i, b := range payload {
			samples[i] = DecodeALawSample(b)
		}
		return samples, nil
	case CodecL16:
		if len(payload)%2 != 0 {
			return nil, fmt.Errorf("L16 payload length %d is not sample-aligned", len(payload))
		}
		samples := make([]int16, len(payload)/2)
		for i := range samples {
			samples[i] = int16(payload[2*i]) | int16(payload[2*i+1])<<8
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

// PCM16Bytes packs linear samples as 16-bit little-endian PCM, the encoding
// hosted speech-to-text services accept.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Normalize converts linear samples to float64 in [-1, 1].
func Normalize(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}
