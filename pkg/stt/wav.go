package stt

import (
	"encoding/binary"
	"fmt"
	"os"

	"call-analysis-engine/pkg/audio"
)

// writeTempWAV writes PCM samples to a scratch WAV file for a hosted provider
// request. Callers must remove the file as soon as the request completes,
// success or failure; these artifacts are never retained.
func writeTempWAV(dir string, sampleRate int, pcm []int16) (string, error) {
	f, err := os.CreateTemp(dir, "stt-window-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch audio file: %w", err)
	}

	if _, err := f.Write(wavBytes(sampleRate, pcm)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// wavBytes renders a mono 16-bit PCM WAV file.
func wavBytes(sampleRate int, pcm []int16) []byte {
	data := audio.PCM16Bytes(pcm)
	buf := make([]byte, 0, 44+len(data))

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	byteRate := uint32(sampleRate * 2)

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+len(data)))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(1)...) // mono
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(byteRate)...)
	buf = append(buf, u16(2)...)  // block align
	buf = append(buf, u16(16)...) // bits per sample
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(len(data)))...)
	buf = append(buf, data...)

	return buf
}
