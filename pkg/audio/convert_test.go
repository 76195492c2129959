package audio_test

import (
	"testing"

	"github.com/MrWong99/dubctl/pkg/audio"
)

// pcm16 builds little-endian int16 PCM bytes from samples.
func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func TestMonoToStereo(t *testing.T) {
	mono := pcm16(100, -200)
	stereo := audio.MonoToStereo(mono)
	want := pcm16(100, 100, -200, -200)
	if string(stereo) != string(want) {
		t.Errorf("MonoToStereo = %v, want %v", stereo, want)
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := pcm16(100, 300, -100, -300)
	mono := audio.StereoToMono(stereo)
	want := pcm16(200, -200)
	if string(mono) != string(want) {
		t.Errorf("StereoToMono = %v, want %v", mono, want)
	}
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	stereo := pcm16(32767, 32767)
	mono := audio.StereoToMono(stereo)
	want := pcm16(32767)
	if string(mono) != string(want) {
		t.Errorf("StereoToMono = %v, want %v", mono, want)
	}
}

func TestResampleMono16_SameRateUnchanged(t *testing.T) {
	pcm := pcm16(1, 2, 3)
	out := audio.ResampleMono16(pcm, 48000, 48000)
	if &out[0] != &pcm[0] {
		t.Error("same-rate resample should return the input slice")
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	pcm := pcm16(0, 1000)
	out := audio.ResampleMono16(pcm, 16000, 48000)
	if got, want := len(out)/2, 6; got != want {
		t.Fatalf("upsampled to %d samples, want %d", got, want)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	pcm := pcm16(0, 100, 200, 300, 400, 500)
	out := audio.ResampleMono16(pcm, 48000, 16000)
	if got, want := len(out)/2, 2; got != want {
		t.Fatalf("downsampled to %d samples, want %d", got, want)
	}
}

func TestResampleMono16_InvalidRatesPassThrough(t *testing.T) {
	pcm := pcm16(1, 2)
	for _, rates := range [][2]int{{0, 48000}, {48000, 0}, {-1, 48000}} {
		out := audio.ResampleMono16(pcm, rates[0], rates[1])
		if string(out) != string(pcm) {
			t.Errorf("rates %v: input not passed through", rates)
		}
	}
}

func TestResampleInt16_RoundTripRates(t *testing.T) {
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	up := audio.ResampleInt16(samples, 16000, 48000)
	if got, want := len(up), 48000; got != want {
		t.Fatalf("upsample length %d, want %d", got, want)
	}
	down := audio.ResampleInt16(up, 48000, 16000)
	if got, want := len(down), 16000; got != want {
		t.Fatalf("round-trip length %d, want %d", got, want)
	}
}
