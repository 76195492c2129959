// Package separate invokes an external vocal-separation tool as an opaque
// process: source audio in, a vocals track and an accompaniment track out.
// The tool's internals (model, quality, runtime) are its own business; the
// pipeline only depends on the two output files appearing at the paths it
// chose.
package separate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Separator runs a two-stem separation command. Command is the binary to
// invoke; Args is its fixed argument list, in which the placeholders
// {input}, {vocals} and {accompaniment} are substituted per call.
type Separator struct {
	Command string
	Args    []string
}

// Default returns a Separator wired for a demucs-style two-stem CLI.
func Default() Separator {
	return Separator{
		Command: "demucs-split",
		Args:    []string{"--two-stems", "{input}", "{vocals}", "{accompaniment}"},
	}
}

// Run separates sourceWav into vocalsPath and accompanimentPath. The tool
// writes to temp paths that are renamed into place only when it exits
// cleanly and both outputs exist.
func (s Separator) Run(ctx context.Context, sourceWav, vocalsPath, accompanimentPath string) error {
	tmpVocals := vocalsPath + ".tmp"
	tmpAccomp := accompanimentPath + ".tmp"
	defer os.Remove(tmpVocals)
	defer os.Remove(tmpAccomp)

	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		a = strings.ReplaceAll(a, "{input}", sourceWav)
		a = strings.ReplaceAll(a, "{vocals}", tmpVocals)
		a = strings.ReplaceAll(a, "{accompaniment}", tmpAccomp)
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("separate: %s: %w: %s", s.Command, err, lastLine(stderr.String()))
	}

	for _, p := range []string{tmpVocals, tmpAccomp} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("separate: %s exited cleanly but %s is missing", s.Command, filepath.Base(p))
		}
	}
	if err := os.Rename(tmpVocals, vocalsPath); err != nil {
		return fmt.Errorf("separate: commit vocals: %w", err)
	}
	if err := os.Rename(tmpAccomp, accompanimentPath); err != nil {
		return fmt.Errorf("separate: commit accompaniment: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
