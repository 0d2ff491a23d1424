package whisper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ewhitt/murmur/internal/proc"
	"github.com/ewhitt/murmur/internal/stream"
)

// DefaultOneShotBinary is the whisper.cpp batch transcriber.
const DefaultOneShotBinary = "whisper-cli"

// OneShotConfig describes a single file transcription.
type OneShotConfig struct {
	BinaryPath string
	ModelPath  string
	Language   string
}

// TranscribeFile runs the batch transcriber over a recorded WAV file and
// returns the cleaned transcript. Cancellation stops the process and waits
// for it to exit before returning.
func TranscribeFile(ctx context.Context, cfg OneShotConfig, wavPath string, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultOneShotBinary
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrModelMissing, cfg.ModelPath)
	}
	path, err := proc.LookPath(cfg.BinaryPath)
	if err != nil {
		return Result{}, err
	}

	args := []string{"-m", cfg.ModelPath, "-f", wavPath, "-nt", "-np"}
	if cfg.Language != "" {
		args = append(args, "-l", cfg.Language)
	}
	h, err := proc.Spawn(path, args, proc.Options{PipeStdout: true, PipeStderr: true, Log: log})
	if err != nil {
		return Result{}, err
	}

	outCh := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(h.Stdout)
		outCh <- string(b)
	}()
	errCh := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(io.LimitReader(h.Stderr, 8<<10))
		errCh <- string(b)
	}()

	select {
	case <-ctx.Done():
		h.RequestStop()
		<-h.Done()
		return Result{}, ctx.Err()
	case <-h.Done():
	}

	stdout := <-outCh
	stderr := <-errCh
	if code := h.ExitCode(); code != 0 && !h.StopRequested() {
		return Result{}, &ExitError{Code: code, Stderr: stderr}
	}

	var lines []string
	for _, seg := range stream.Split(stdout + "\n") {
		if seg.Blank {
			continue
		}
		lines = append(lines, seg.Text)
	}
	text := strings.Join(lines, " ")
	if strings.TrimSpace(text) == "" {
		return Result{Text: NoSpeechPlaceholder, NoSpeech: true}, nil
	}
	log.Info("file transcribed", "file", wavPath, "chars", len(text))
	return Result{Text: text}, nil
}
