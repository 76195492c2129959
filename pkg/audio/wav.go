package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavFormat is the subset of a WAVE "fmt " chunk this package needs to
// decode PCM samples correctly.
type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// parseWAV walks a RIFF/WAVE container chunk by chunk rather than assuming
// a fixed 44-byte header, since files produced by ffmpeg (the demux phase's
// output) commonly carry extra chunks (LIST, fact, ...) before "data".
func parseWAV(raw []byte) (wavFormat, []byte, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return wavFormat{}, nil, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var format wavFormat
	var data []byte
	haveFormat, haveData := false, false

	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(raw) {
			break
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return wavFormat{}, nil, fmt.Errorf("audio: fmt chunk too small (%d bytes)", size)
			}
			format = wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(raw[body : body+2]),
				channels:      binary.LittleEndian.Uint16(raw[body+2 : body+4]),
				sampleRate:    binary.LittleEndian.Uint32(raw[body+4 : body+8]),
				bitsPerSample: binary.LittleEndian.Uint16(raw[body+14 : body+16]),
			}
			haveFormat = true
		case "data":
			data = raw[body : body+size]
			haveData = true
		}

		// Chunks are word-aligned; odd-sized chunks carry a pad byte.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFormat {
		return wavFormat{}, nil, fmt.Errorf("audio: missing fmt chunk")
	}
	if !haveData {
		return wavFormat{}, nil, fmt.Errorf("audio: missing data chunk")
	}
	// Only tag 1 (integer PCM) is decoded. IEEE float (3) and
	// WAVE_FORMAT_EXTENSIBLE (0xFFFE) are rejected rather than guessed at.
	if format.audioFormat != 1 {
		return wavFormat{}, nil, fmt.Errorf("audio: unsupported WAVE format tag %d", format.audioFormat)
	}
	return format, data, nil
}

// pcmToMonoInt16 downmixes and converts an arbitrary-bit-depth PCM buffer to
// mono int16 samples.
func pcmToMonoInt16(format wavFormat, data []byte) ([]int16, error) {
	bytesPerSample := int(format.bitsPerSample) / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("audio: unsupported bit depth %d", format.bitsPerSample)
	}
	channels := int(format.channels)
	if channels == 0 {
		return nil, fmt.Errorf("audio: fmt chunk declares 0 channels")
	}
	frameSize := bytesPerSample * channels
	if frameSize == 0 || len(data) < frameSize {
		return nil, nil
	}
	frames := len(data) / frameSize

	readSample := func(off int) int32 {
		switch bytesPerSample {
		case 1:
			// 8-bit PCM is unsigned in the WAVE spec.
			return (int32(data[off]) - 128) << 8
		case 2:
			return int32(int16(binary.LittleEndian.Uint16(data[off : off+2])))
		case 3:
			v := uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16
			if v&0x800000 != 0 {
				v |= 0xFF000000
			}
			return int32(v) >> 8
		case 4:
			return int32(binary.LittleEndian.Uint32(data[off:off+4])) >> 16
		default:
			return 0
		}
	}

	out := make([]int16, frames)
	for i := range frames {
		base := i * frameSize
		var sum int32
		for c := range channels {
			sum += readSample(base + c*bytesPerSample)
		}
		avg := sum / int32(channels)
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i] = int16(avg)
	}
	return out, nil
}

// ReadWAVMonoFloat32 decodes the WAV file at path into mono float32 samples
// in [-1.0, 1.0] at WhisperSampleRate, the format whisper.cpp's
// wctx.Process expects. Stereo and multi-channel input is averaged down to
// mono; any other sample rate is linearly resampled.
func ReadWAVMonoFloat32(path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}

	format, data, err := parseWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("audio: parse %s: %w", path, err)
	}

	mono, err := pcmToMonoInt16(format, data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}

	monoBytes := encodeInt16LE(mono)
	monoBytes = ResampleMono16(monoBytes, int(format.sampleRate), WhisperSampleRate)
	mono = decodeInt16LE(monoBytes)

	samples := make([]float32, len(mono))
	for i, s := range mono {
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// WhisperSampleRate is the sample rate whisper.cpp models are trained on.
const WhisperSampleRate = 16000

// ReadWAVPCM16Mono decodes the WAV file at path into mono int16 PCM samples,
// reporting the file's native sample rate so callers (the mixer, the
// duration probe) can resample to their own target rate as needed. Unlike
// [ReadWAVMonoFloat32] this does not force any particular output rate.
func ReadWAVPCM16Mono(path string) (samples []int16, sampleRate int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: read %s: %w", path, err)
	}
	format, data, err := parseWAV(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: parse %s: %w", path, err)
	}
	mono, err := pcmToMonoInt16(format, data)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return mono, int(format.sampleRate), nil
}

// WriteWAVPCM16Mono wraps little-endian int16 mono PCM samples in a
// canonical WAVE header at sampleRate and writes it to path.
func WriteWAVPCM16Mono(path string, samples []int16, sampleRate int) error {
	return os.WriteFile(path, EncodeWAVPCM16Mono(samples, sampleRate), 0o644)
}

// EncodeWAVPCM16Mono wraps little-endian int16 mono PCM samples in a
// canonical 44-byte RIFF/WAVE header, without touching disk.
func EncodeWAVPCM16Mono(samples []int16, sampleRate int) []byte {
	data := encodeInt16LE(samples)
	const (
		bitsPerSample = 16
		channels      = 1
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44+len(data))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(data)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(data)))
	copy(buf[44:], data)
	return buf
}

// ResampleInt16 linearly resamples mono int16 samples between rates. A
// matching source and destination rate returns the input unchanged.
func ResampleInt16(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	return decodeInt16LE(ResampleMono16(encodeInt16LE(samples), srcRate, dstRate))
}

func encodeInt16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func decodeInt16LE(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}
