// Package audio records PCM audio for a capture session and hands the finished clip over as WAV.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"go.uber.org/multierr"
)

// Config tunes capture and silence detection.
type Config struct {
	SampleRate      int
	FrameSize       int
	EnergyThreshold float64
	Silence         time.Duration
	MinDuration     time.Duration
}

// DefaultConfig matches the recorder defaults of the configuration file.
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		FrameSize:       1024,
		EnergyThreshold: 0.01,
		Silence:         3 * time.Second,
		MinDuration:     5 * time.Second,
	}
}

// Opener starts a stream of signed 16-bit little-endian mono PCM.
type Opener func() (io.ReadCloser, error)

// CommandOpener runs an external recorder (arecord, sox, ffmpeg) and reads its stdout.
func CommandOpener(args []string) Opener {
	return func() (io.ReadCloser, error) {
		if len(args) == 0 {
			return nil, errors.New("no recorder command configured")
		}
		cmd := exec.Command(args[0], args[1:]...)
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &process{cmd: cmd, out: out}, nil
	}
}

type process struct {
	cmd *exec.Cmd
	out io.ReadCloser
}

func (p *process) Read(b []byte) (int, error) { return p.out.Read(b) }

func (p *process) Close() error {
	err := multierr.Append(p.cmd.Process.Kill(), p.out.Close())
	// The recorder was killed on purpose; its exit status carries nothing.
	_ = p.cmd.Wait()
	return err
}

// Source records one session of audio.
type Source struct {
	cfg    Config
	open   Opener
	logger contracts.Logger

	mu       sync.Mutex
	stream   io.ReadCloser
	samples  []int16
	detector SilenceDetector
	readErr  error
	wg       sync.WaitGroup
}

// New creates an audio source.
func New(cfg Config, open Opener, logger contracts.Logger) *Source {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultConfig().FrameSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	return &Source{cfg: cfg, open: open, logger: logger}
}

// Kind implements contracts.InputSource.
func (s *Source) Kind() contracts.SourceKind { return contracts.SourceAudio }

// Open starts recording. sink only receives AutoStop.
func (s *Source) Open(sink contracts.NoteSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return fmt.Errorf("%w: recorder already running", contracts.ErrDeviceUnavailable)
	}
	stream, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: start recorder: %w", contracts.ErrDeviceUnavailable, err)
	}
	s.stream = stream
	s.samples = nil
	s.readErr = nil
	s.detector = SilenceDetector{
		Threshold:   s.cfg.EnergyThreshold,
		Window:      s.cfg.Silence,
		MinDuration: s.cfg.MinDuration,
	}

	s.wg.Add(1)
	go s.read(stream, sink)
	return nil
}

func (s *Source) read(stream io.Reader, sink contracts.NoteSink) {
	defer s.wg.Done()
	raw := make([]byte, s.cfg.FrameSize*2)
	frame := make([]int16, s.cfg.FrameSize)
	for {
		n, err := io.ReadFull(stream, raw)
		samples := n / 2
		for i := 0; i < samples; i++ {
			frame[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		if samples > 0 && s.observe(frame[:samples], sink) {
			sink.AutoStop()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
			}
			return
		}
	}
}

func (s *Source) observe(frame []int16, sink contracts.NoteSink) bool {
	d := time.Duration(len(frame)) * time.Second / time.Duration(s.cfg.SampleRate)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	s.samples = append(s.samples, frame...)
	return s.detector.Observe(RMS(frame), d)
}

// Finish stops the recorder and returns the clip as WAV. An empty recording yields a nil blob.
func (s *Source) Finish() ([]byte, error) {
	samples, err := s.stop()
	if len(samples) == 0 {
		return nil, err
	}
	blob, encErr := EncodeWAV(samples, s.cfg.SampleRate)
	if encErr != nil {
		return nil, multierr.Append(err, fmt.Errorf("encode wav: %w", encErr))
	}
	s.logger.Debug("Audio clip finished",
		s.logger.Field().Int("samples", len(samples)),
		s.logger.Field().Int("bytes", len(blob)))
	return blob, err
}

// Abort stops the recorder and discards the clip.
func (s *Source) Abort() error {
	_, err := s.stop()
	return err
}

func (s *Source) stop() ([]int16, error) {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream == nil {
		return nil, nil
	}

	err := stream.Close()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.samples
	s.samples = nil
	if s.readErr != nil && !errors.Is(s.readErr, io.ErrClosedPipe) && !errors.Is(s.readErr, os.ErrClosed) {
		err = multierr.Append(err, s.readErr)
	}
	return samples, err
}
