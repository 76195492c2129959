package synth

// This file holds the int16-PCM post-processing helpers the synthesizer
// applies after a backend returns audio: silence trimming and pitch-
// preserving time compression.

// decodePCM16 decodes little-endian int16 mono PCM bytes into samples.
// Trailing odd bytes are dropped.
func decodePCM16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}

// encodePCM16 encodes int16 samples into little-endian PCM bytes.
func encodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// silenceThreshold is the absolute sample amplitude below which audio is
// considered silence for trimming purposes.
const silenceThreshold = 500

// trimSilence returns the subslice of samples with leading and trailing
// near-silence removed. An all-silent input returns an empty slice.
func trimSilence(samples []int16) []int16 {
	start := 0
	for start < len(samples) && abs16(samples[start]) < silenceThreshold {
		start++
	}
	end := len(samples)
	for end > start && abs16(samples[end-1]) < silenceThreshold {
		end--
	}
	return samples[start:end]
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

// timeCompress shortens samples by the given rate (rate > 1.0 speeds
// playback up) using overlap-add time-scale modification: audio is cut into
// overlapping frames, the hop on the output side is shrunk by 1/rate, and
// frames are cross-faded with a triangular window. This changes duration
// without the pitch shift a naive resample would introduce, at a quality
// level adequate for a compressed dub track.
//
// frameLen/hopLen are chosen for 16kHz-class speech; rate <= 1.0 is a no-op.
func timeCompress(samples []int16, rate float64) []int16 {
	if rate <= 1.0 || len(samples) == 0 {
		return samples
	}

	const frameLen = 1024
	hopIn := frameLen / 2
	hopOut := int(float64(hopIn) / rate)
	if hopOut < 1 {
		hopOut = 1
	}

	outLen := int(float64(len(samples))/rate) + frameLen
	out := make([]float64, outLen)
	weight := make([]float64, outLen)

	window := triangularWindow(frameLen)

	for readPos, writePos := 0, 0; readPos < len(samples); readPos, writePos = readPos+hopIn, writePos+hopOut {
		end := readPos + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		for i := readPos; i < end; i++ {
			w := window[i-readPos]
			out[writePos+(i-readPos)] += float64(samples[i]) * w
			weight[writePos+(i-readPos)] += w
		}
	}

	trimmed := 0
	for i, w := range weight {
		if w > 0 {
			trimmed = i + 1
		}
	}
	out = out[:trimmed]
	weight = weight[:trimmed]

	result := make([]int16, len(out))
	for i := range out {
		v := out[i]
		if weight[i] > 0 {
			v /= weight[i]
		}
		result[i] = clampInt16(v)
	}
	return result
}

func triangularWindow(n int) []float64 {
	w := make([]float64, n)
	half := float64(n-1) / 2
	for i := range n {
		w[i] = 1 - abs(float64(i)-half)/half
	}
	return w
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
