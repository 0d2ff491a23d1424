package indicator

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

// Cue identifies one of the session lifecycle sounds.
type Cue int

const (
	CueListen Cue = iota + 1
	CueDone
	CueCancel
	CueError
)

const cueSampleRate = 16000

type tone struct {
	hz     float64
	length time.Duration
	gain   float64
}

var cueTones = map[Cue][]tone{
	CueListen: {
		{hz: 880, length: 70 * time.Millisecond, gain: 0.18},
		{hz: 1175, length: 70 * time.Millisecond, gain: 0.18},
	},
	CueDone: {
		{hz: 740, length: 65 * time.Millisecond, gain: 0.18},
		{hz: 988, length: 90 * time.Millisecond, gain: 0.18},
	},
	CueCancel: {
		{hz: 480, length: 75 * time.Millisecond, gain: 0.18},
		{hz: 360, length: 90 * time.Millisecond, gain: 0.18},
	},
	CueError: {
		{hz: 330, length: 140 * time.Millisecond, gain: 0.2},
	},
}

// Player plays short synthesized cues over PulseAudio. Playback runs on its
// own goroutine and never blocks or fails the caller.
type Player struct {
	Enabled bool
	Log     *slog.Logger

	mu sync.Mutex
}

// Play emits the cue asynchronously. Cues are serialized so overlapping
// lifecycle events do not mix.
func (p *Player) Play(kind Cue) {
	if !p.Enabled {
		return
	}
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := playPCM(renderCue(cueTones[kind])); err != nil && p.Log != nil {
			p.Log.Debug("audio cue failed", "err", err)
		}
	}()
}

func playPCM(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("murmur"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("murmur cue"),
	)
	if err != nil {
		return fmt.Errorf("create playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

// renderCue concatenates the cue's tones with a short gap between them.
func renderCue(parts []tone) []int16 {
	gap := sampleCount(22 * time.Millisecond)
	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, renderTone(part)...)
		if i < len(parts)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

// renderTone synthesizes a sine tone with a short attack/release ramp so the
// cue does not click.
func renderTone(spec tone) []int16 {
	n := sampleCount(spec.length)
	if n <= 0 || spec.hz <= 0 || spec.gain <= 0 {
		return nil
	}

	ramp := n / 10
	if max := cueSampleRate / 200; ramp > max {
		ramp = max
	}
	if ramp < 1 {
		ramp = 1
	}

	pcm := make([]int16, n)
	for i := range pcm {
		env := 1.0
		if i < ramp {
			env = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			if rel := float64(tail) / float64(ramp); rel < env {
				env = rel
			}
		}
		t := float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*spec.hz*t) * spec.gain * env * 32767))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
