package audio

import (
	"math"
	"time"
)

// SilenceDetector decides when a recording has gone quiet for long enough to stop.
// Time is measured in captured audio, not wall clock.
type SilenceDetector struct {
	Threshold   float64
	Window      time.Duration
	MinDuration time.Duration

	elapsed time.Duration
	silent  time.Duration
	fired   bool
}

// Observe feeds the RMS energy of one frame lasting d. It returns true once, when the recording is at
// least MinDuration long and the last Window of it stayed below Threshold.
func (s *SilenceDetector) Observe(energy float64, d time.Duration) bool {
	s.elapsed += d
	if energy >= s.Threshold {
		s.silent = 0
	} else {
		s.silent += d
	}
	if s.fired || s.elapsed < s.MinDuration || s.silent < s.Window {
		return false
	}
	s.fired = true
	return true
}

// Elapsed is the amount of audio observed.
func (s *SilenceDetector) Elapsed() time.Duration {
	return s.elapsed
}

// RMS is the root mean square of frame, normalized to 0..1.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		f := float64(v) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
