// Package app wires configuration, logging, the control socket, and the
// session into the murmur command entrypoints.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ewhitt/murmur/internal/cli"
	"github.com/ewhitt/murmur/internal/config"
	"github.com/ewhitt/murmur/internal/doctor"
	"github.com/ewhitt/murmur/internal/indicator"
	"github.com/ewhitt/murmur/internal/ipc"
	"github.com/ewhitt/murmur/internal/logging"
	"github.com/ewhitt/murmur/internal/record"
	"github.com/ewhitt/murmur/internal/session"
	"github.com/ewhitt/murmur/internal/version"
	"github.com/ewhitt/murmur/internal/whisper"
)

const forwardTimeout = 220 * time.Millisecond

// Runner executes one parsed command. Stdout carries transcripts and
// progress; diagnostics go to Stderr and the JSONL log.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute runs args to completion and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("murmur"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("murmur"))
		return 0
	}
	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	configPath := parsed.ConfigPath
	if configPath == "" {
		if configPath, err = config.Path(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "err", err.Error())
		return 1
	}
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w)
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}

	logger.Info("command start", "command", string(parsed.Command), "config", configPath)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfg)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandListen:
		if parsed.OneShot {
			return r.commandOneShot(ctx, parsed, cfg, logger)
		}
		return r.commandListen(ctx, parsed, cfg, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active murmur session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// progressEvent is one JSONL line emitted on stdout under --progress.
type progressEvent struct {
	Event string `json:"event"`
	Text  string `json:"text,omitempty"`
}

func (r Runner) commandListen(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: another murmur session is already running (try 'murmur status')")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	modelPath, err := config.ModelPath(cfg.Model)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var progress *json.Encoder
	if parsed.Progress {
		progress = json.NewEncoder(r.Stdout)
	}
	emit := func(event, text string) {
		if progress != nil {
			_ = progress.Encode(progressEvent{Event: event, Text: text})
		}
	}

	var channel *indicator.Channel
	var ind session.Indicator
	if cfg.Indicator.Enable {
		channel = indicator.NewChannel(cfg.Indicator.Binary, logger)
		ind = channel
	}
	cues := &indicator.Player{Enabled: cfg.Indicator.Sound, Log: logger}

	sess := whisper.NewSession(whisper.Config{
		BinaryPath:       cfg.StreamBinary,
		ModelPath:        modelPath,
		Language:         effectiveLanguage(parsed, cfg),
		SilenceThreshold: cfg.SilenceThreshold,
		MaxDuration:      effectiveMaxDuration(parsed, cfg),
	}, logger, whisper.Callbacks{
		OnPartial: func(text string) {
			if channel != nil {
				channel.SendText(text)
			}
			emit("partial", text)
		},
		OnFinal: func(text string) {
			if channel != nil {
				channel.SendText(text)
			}
			emit("final", text)
		},
		OnSilence: func() { emit("silence", "") },
	})
	controller := session.NewController(logger, sess, ind, cues)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: control server failed: %v\n", serverErr)
		return 1
	}

	logResult(logger, result)
	return r.printResult(result)
}

func (r Runner) commandOneShot(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: another murmur session is already running (try 'murmur status')")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	recCtx, stopRecording := context.WithCancel(ctx)
	defer stopRecording()
	var cancelled atomic.Bool
	var phase atomic.Value
	phase.Store("recording")

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			state, _ := phase.Load().(string)
			switch req.Command {
			case ipc.CommandStatus:
				return ipc.Response{OK: true, State: state, Message: "status"}
			case ipc.CommandStop:
				stopRecording()
				return ipc.Response{OK: true, State: state, Message: "stop requested"}
			case ipc.CommandCancel:
				cancelled.Store(true)
				stopRecording()
				return ipc.Response{OK: true, State: state, Message: "cancel requested"}
			default:
				return ipc.Response{State: state, Error: fmt.Sprintf("unknown command: %s", req.Command)}
			}
		}))
	}()

	var channel *indicator.Channel
	if cfg.Indicator.Enable {
		channel = indicator.NewChannel(cfg.Indicator.Binary, logger)
		channel.Open()
		channel.Update(indicator.StatusListening)
		defer channel.Close()
	}
	cues := &indicator.Player{Enabled: cfg.Indicator.Sound, Log: logger}
	cues.Play(indicator.CueListen)

	wav, err := os.CreateTemp("", "murmur-*.wav")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	wavPath := wav.Name()
	_ = wav.Close()
	defer os.Remove(wavPath)

	recorder := record.Recorder{BinaryPath: cfg.RecordBinary, Log: logger}
	if err := recorder.Capture(recCtx, wavPath, effectiveMaxDuration(parsed, cfg)); err != nil {
		cues.Play(indicator.CueError)
		fmt.Fprintf(r.Stderr, "error: %s\n", session.UserMessage(err))
		logger.Error("recording failed", "err", err.Error())
		return 1
	}
	if cancelled.Load() || ctx.Err() != nil {
		cues.Play(indicator.CueCancel)
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}

	phase.Store("processing")
	if channel != nil {
		channel.Update(indicator.StatusProcessing)
	}

	modelPath, err := config.ModelPath(cfg.Model)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	res, err := whisper.TranscribeFile(ctx, whisper.OneShotConfig{
		BinaryPath: cfg.OneShotBinary,
		ModelPath:  modelPath,
		Language:   effectiveLanguage(parsed, cfg),
	}, wavPath, logger)
	if err != nil {
		cues.Play(indicator.CueError)
		fmt.Fprintf(r.Stderr, "error: %s\n", session.UserMessage(err))
		logger.Error("transcription failed", "err", err.Error())
		return 1
	}

	cues.Play(indicator.CueDone)
	fmt.Fprintln(r.Stdout, res.Text)
	return 0
}

func (r Runner) printResult(result session.Result) int {
	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		msg := result.Message
		if msg == "" {
			msg = result.Err.Error()
		}
		fmt.Fprintf(r.Stderr, "error: %s\n", msg)
		return 1
	}
	if text := strings.TrimSpace(result.Transcript); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

func effectiveLanguage(parsed cli.Parsed, cfg config.Config) string {
	if parsed.Language != "" {
		return parsed.Language
	}
	return cfg.Language
}

func effectiveMaxDuration(parsed cli.Parsed, cfg config.Config) time.Duration {
	seconds := cfg.MaxDurationSeconds
	if parsed.MaxDuration > 0 {
		seconds = parsed.MaxDuration
		if seconds > config.MaxDurationSeconds {
			seconds = config.MaxDurationSeconds
		}
	}
	return time.Duration(seconds) * time.Second
}

func logResult(logger *slog.Logger, result session.Result) {
	fields := []any{
		"state", string(result.State),
		"cancelled", result.Cancelled,
		"no_speech", result.NoSpeech,
		"transcript_length", len(result.Transcript),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if result.Err != nil {
		logger.Error("session failed", append(fields, "err", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
