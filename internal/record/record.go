// Package record captures microphone audio to a WAV file for one-shot
// transcription, using sox as the capture tool.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ewhitt/murmur/internal/proc"
)

const (
	// DefaultBinary is the capture tool looked up on PATH.
	DefaultBinary = "sox"
	// SampleRate and channel layout match what the whisper models expect.
	SampleRate = 16000
)

// Recorder captures from the default input device. The zero value records
// with sox at the model sample rate.
type Recorder struct {
	BinaryPath string
	Log        *slog.Logger
}

func (r Recorder) args(path string, maxDuration time.Duration) []string {
	args := []string{
		"-d", "-q",
		"-r", strconv.Itoa(SampleRate),
		"-c", "1",
		"-b", "16",
		path,
	}
	if maxDuration > 0 {
		args = append(args, "trim", "0", strconv.FormatFloat(maxDuration.Seconds(), 'f', -1, 64))
	}
	return args
}

// Capture records into path until maxDuration elapses or ctx is canceled.
// Cancellation stops the recorder cooperatively so the WAV header is
// finalized; a stop-induced nonzero exit is not an error.
func (r Recorder) Capture(ctx context.Context, path string, maxDuration time.Duration) error {
	bin := r.BinaryPath
	if bin == "" {
		bin = DefaultBinary
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	resolved, err := proc.LookPath(bin)
	if err != nil {
		return err
	}

	h, err := proc.Spawn(resolved, r.args(path, maxDuration), proc.Options{Log: log})
	if err != nil {
		return err
	}
	log.Info("recording", "file", path, "max_duration", maxDuration)

	select {
	case <-ctx.Done():
		h.RequestStop()
		<-h.Done()
		if ctx.Err() == context.Canceled {
			// Early stop is how the user ends a recording.
			return nil
		}
		return ctx.Err()
	case <-h.Done():
	}

	if code := h.ExitCode(); code != 0 && !h.StopRequested() {
		return fmt.Errorf("recorder exited with code %d", code)
	}
	return nil
}
