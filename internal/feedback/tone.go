// Package feedback plays a short tone for each pressed key.
package feedback

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	DefaultDuration   = 250 * time.Millisecond
)

// Frequency is the equal-tempered frequency of a MIDI pitch, A4 = 440 Hz.
func Frequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// Tone is a sine at freq lasting d, scaled by amp and fading out linearly.
func Tone(rate beep.SampleRate, freq, amp float64, d time.Duration) beep.Streamer {
	total := rate.N(d)
	pos := 0
	sine := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			env := 1 - float64(pos)/float64(total)
			if env < 0 {
				env = 0
			}
			v := amp * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(rate))
			samples[i] = [2]float64{v, v}
			pos++
		}
		return len(samples), true
	})
	return beep.Take(total, sine)
}

// Player plays tones on the system speaker, initialized on first use.
type Player struct {
	rate     beep.SampleRate
	duration time.Duration
	logger   contracts.Logger
	output   func(beep.Streamer) error

	once    sync.Once
	initErr error
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the player logger.
func WithLogger(l contracts.Logger) Option {
	return func(p *Player) {
		p.logger = l
	}
}

// WithDuration sets the tone length.
func WithDuration(d time.Duration) Option {
	return func(p *Player) {
		p.duration = d
	}
}

// WithOutput replaces the speaker, mostly for tests.
func WithOutput(out func(beep.Streamer) error) Option {
	return func(p *Player) {
		p.output = out
	}
}

// New creates a Player.
func New(opts ...Option) *Player {
	p := &Player{rate: DefaultSampleRate, duration: DefaultDuration}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.NewZapLogger()
	}
	if p.output == nil {
		p.output = p.speaker
	}
	return p
}

func (p *Player) speaker(s beep.Streamer) error {
	p.once.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/20))
		if p.initErr != nil {
			p.logger.Warn("Sound feedback disabled", p.logger.Field().Error("error", p.initErr))
		}
	})
	if p.initErr != nil {
		return p.initErr
	}
	speaker.Play(s)
	return nil
}

// Play sounds pitch at velocity (0..1). Invalid pitches are ignored.
func (p *Player) Play(pitch int, velocity float64) {
	if !contracts.ValidPitch(pitch) {
		return
	}
	amp := 0.2 + 0.6*math.Max(0, math.Min(1, velocity))
	if err := p.output(Tone(p.rate, Frequency(pitch), amp, p.duration)); err != nil {
		p.logger.Debug("Feedback tone dropped", p.logger.Field().Error("error", err))
	}
}
