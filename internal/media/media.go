// Package media shells out to the ffmpeg toolchain for demuxing, probing,
// and final muxing with burned-in subtitles. The pipeline treats these as
// opaque collaborators: audio in, audio out, with deterministic output
// paths supplied by the caller.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Toolchain wraps the ffmpeg/ffprobe binaries. The zero value uses the
// binaries found on PATH.
type Toolchain struct {
	FFmpegPath  string
	FFprobePath string
}

func (t Toolchain) ffmpeg() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	return "ffmpeg"
}

func (t Toolchain) ffprobe() string {
	if t.FFprobePath != "" {
		return t.FFprobePath
	}
	return "ffprobe"
}

// ExtractAudio demuxes videoPath's audio track into a 16kHz mono PCM WAV
// at wavPath. The write is atomic: ffmpeg renders to a temp file that is
// renamed into place only on success.
func (t Toolchain) ExtractAudio(ctx context.Context, videoPath, wavPath string) error {
	tmp := wavPath + ".tmp"
	defer os.Remove(tmp)

	err := t.run(ctx, t.ffmpeg(),
		"-y", "-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		"-f", "wav", tmp,
	)
	if err != nil {
		return fmt.Errorf("media: extract audio from %s: %w", filepath.Base(videoPath), err)
	}
	return os.Rename(tmp, wavPath)
}

// ProbeDurationMs returns the duration of the media file in integer
// milliseconds.
func (t Toolchain) ProbeDurationMs(ctx context.Context, path string) (int, error) {
	out, err := t.output(ctx, t.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: %w", filepath.Base(path), err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: parse duration %q: %w", filepath.Base(path), out, err)
	}
	return int(secs * 1000), nil
}

// Burn muxes the dubbed audio track over videoPath's picture and burns
// srtPath into the frames, writing the result to outPath atomically.
func (t Toolchain) Burn(ctx context.Context, videoPath, audioPath, srtPath, outPath string) error {
	tmp := outPath + ".tmp.mp4"
	defer os.Remove(tmp)

	err := t.run(ctx, t.ffmpeg(),
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", "subtitles="+ffmpegFilterEscape(srtPath),
		"-c:v", "libx264", "-c:a", "aac",
		"-shortest",
		tmp,
	)
	if err != nil {
		return fmt.Errorf("media: burn %s: %w", filepath.Base(outPath), err)
	}
	return os.Rename(tmp, outPath)
}

func (t Toolchain) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return nil
}

func (t Toolchain) output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return stdout.String(), nil
}

// lastLine keeps error messages single-line: ffmpeg writes pages of
// banner text to stderr and the failure reason is at the bottom.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// ffmpegFilterEscape escapes a path for use inside an ffmpeg filter
// argument, where ':' and '\' are separators.
func ffmpegFilterEscape(path string) string {
	r := strings.NewReplacer(`\`, `\\`, ":", `\:`, "'", `\'`)
	return r.Replace(path)
}
