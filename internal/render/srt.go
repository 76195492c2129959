// Package render produces the deterministic textual outputs of a run: the
// source- and target-language SRT files and the run summary report. Given
// the same documents it always emits byte-identical output, so rendered
// artifacts fingerprint stably.
package render

import (
	"fmt"
	"strings"

	"github.com/MrWong99/dubctl/internal/model"
)

// SRTCue is one subtitle display entry, ready for serialization.
type SRTCue struct {
	StartMs int
	EndMs   int
	Text    string
}

// SRT serializes cues in SubRip format. Cues are numbered from 1 in the
// order given; callers are responsible for passing them in display order.
func SRT(cues []SRTCue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(c.StartMs), srtTimestamp(c.EndMs), c.Text)
	}
	return b.String()
}

// SourceCues flattens the subtitle model's cues into SRT entries carrying
// the source-language text.
func SourceCues(sm model.SubtitleModel) []SRTCue {
	var out []SRTCue
	for _, u := range sm.Utterances {
		for _, c := range u.Cues {
			out = append(out, SRTCue{StartMs: c.StartMs, EndMs: c.EndMs, Text: c.Source.Text})
		}
	}
	return out
}

// TargetCues flattens the align phase's rebuilt target-language cues into
// SRT entries.
func TargetCues(sa model.SubtitleAlign) []SRTCue {
	var out []SRTCue
	for _, u := range sa.Utterances {
		for _, c := range u.Cues {
			out = append(out, SRTCue{StartMs: c.StartMs, EndMs: c.EndMs, Text: c.Source.Text})
		}
	}
	return out
}

// srtTimestamp formats ms as an SRT timestamp, HH:MM:SS,mmm.
func srtTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
