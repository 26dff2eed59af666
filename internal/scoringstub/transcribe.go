package scoringstub

import (
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep/wav"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Transcription tuning.
const (
	frameSeconds  = 0.02
	voicedEnergy  = 0.02
	pitchDrift    = 1 // semitones tolerated within one note
)

// decodeWAV reads a WAV stream into mono samples.
func decodeWAV(r io.Reader) ([]float64, int, error) {
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	defer stream.Close()

	var out []float64
	buf := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(buf)
		for _, s := range buf[:n] {
			out = append(out, (s[0]+s[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	return out, int(format.SampleRate), nil
}

type frame struct {
	energy float64
	pitch  int
}

// transcribe is a crude monophonic transcriber: frames above an energy floor are voiced, their pitch is
// estimated from the zero-crossing rate, and runs of voiced frames with a stable pitch become notes.
func transcribe(samples []float64, rate int) []contracts.NoteEvent {
	size := int(float64(rate) * frameSeconds)
	if size <= 0 {
		return nil
	}
	var frames []frame
	for start := 0; start+size <= len(samples); start += size {
		frames = append(frames, analyze(samples[start:start+size], rate))
	}

	var notes []contracts.NoteEvent
	for i := 0; i < len(frames); {
		if frames[i].pitch < 0 {
			i++
			continue
		}
		j, peak := i, 0.0
		for j < len(frames) && frames[j].pitch >= 0 && abs(frames[j].pitch-frames[i].pitch) <= pitchDrift {
			peak = math.Max(peak, frames[j].energy)
			j++
		}
		notes = append(notes, contracts.NoteEvent{
			Pitch:     frames[i].pitch,
			StartTime: float64(i) * frameSeconds,
			Duration:  math.Max(contracts.MinNoteDuration, float64(j-i)*frameSeconds),
			Velocity:  math.Min(1, peak*2),
		})
		i = j
	}
	return notes
}

func analyze(s []float64, rate int) frame {
	var sum float64
	crossings := 0
	var first, last float64
	for i, v := range s {
		sum += v * v
		if i == 0 || (s[i-1] < 0) == (v < 0) {
			continue
		}
		// Interpolated position of the zero crossing.
		at := float64(i-1) + s[i-1]/(s[i-1]-v)
		if crossings == 0 {
			first = at
		}
		last = at
		crossings++
	}
	energy := math.Sqrt(sum / float64(len(s)))
	if energy < voicedEnergy || crossings < 3 || last <= first {
		return frame{energy: energy, pitch: -1}
	}
	freq := float64(crossings-1) / 2 / ((last - first) / float64(rate))
	pitch := int(math.Round(69 + 12*math.Log2(freq/440)))
	if !contracts.ValidPitch(pitch) {
		return frame{energy: energy, pitch: -1}
	}
	return frame{energy: energy, pitch: pitch}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
