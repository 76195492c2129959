package synth

import (
	"encoding/binary"
	"fmt"
)

// SampleRate is the PCM sample rate the synthesizer standardizes all
// segments to.
const SampleRate = 16000

// writeWAV wraps little-endian int16 mono PCM samples in a canonical
// 44-byte RIFF/WAVE header.
func writeWAV(samples []int16) []byte {
	data := encodePCM16(samples)
	const (
		bitsPerSample = 16
		channels      = 1
	)
	byteRate := SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44+len(data))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(data)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(data)))
	copy(buf[44:], data)
	return buf
}

// readWAV extracts int16 mono samples from a WAV file produced by writeWAV.
// It trusts the canonical 44-byte header layout rather than parsing chunks
// generically, since every blob in the cache was written by writeWAV.
func readWAV(raw []byte) ([]int16, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("synth: not a canonical WAV blob")
	}
	return decodePCM16(raw[44:]), nil
}

// durationMs returns the playback duration of n samples at SampleRate.
func durationMs(n int) int {
	return n * 1000 / SampleRate
}

// silenceBlob produces a silent WAV of the given duration, used as the
// placeholder segment on synthesis failure.
func silenceBlob(ms int) []byte {
	n := ms * SampleRate / 1000
	return writeWAV(make([]int16, n))
}
