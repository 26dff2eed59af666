package scoringstub

import (
	"math"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// step is one column of an alignment: a reference index, a performed index, or both.
type step struct {
	op   contracts.Operation // "" for a match
	pos  int
	tPos int
}

// align computes a minimal edit script turning the reference pitch sequence into the performed one.
// Ties prefer match, then substitute, then delete, then insert.
func align(ref, perf []contracts.NoteEvent) []step {
	n, m := len(ref), len(perf)
	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := d[i-1][j-1]
			if ref[i-1].Pitch != perf[j-1].Pitch {
				sub++
			}
			d[i][j] = min(sub, d[i-1][j]+1, d[i][j-1]+1)
		}
	}

	var rev []step
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1].Pitch == perf[j-1].Pitch && d[i][j] == d[i-1][j-1]:
			rev = append(rev, step{pos: i - 1, tPos: j - 1})
			i, j = i-1, j-1
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			rev = append(rev, step{op: contracts.OpSubstitute, pos: i - 1, tPos: j - 1})
			i, j = i-1, j-1
		case i > 0 && d[i][j] == d[i-1][j]+1:
			rev = append(rev, step{op: contracts.OpDelete, pos: i - 1, tPos: j})
			i--
		default:
			rev = append(rev, step{op: contracts.OpInsert, pos: i, tPos: j - 1})
			j--
		}
	}

	out := make([]step, len(rev))
	for k := range rev {
		out[k] = rev[len(rev)-1-k]
	}
	return out
}

// grader turns an alignment into edits with geometry and confidence.
type grader struct {
	layout Layout
	ref    []contracts.NoteEvent
	perf   []contracts.NoteEvent
	offset float64 // performed minus reference time of the first onset
}

func newGrader(layout Layout, ref, perf []contracts.NoteEvent) *grader {
	g := &grader{layout: layout, ref: ref, perf: perf}
	if len(ref) > 0 && len(perf) > 0 {
		g.offset = perf[0].StartTime - ref[0].StartTime
	}
	return g
}

func (g *grader) edits(steps []step) []contracts.Edit {
	var out []contracts.Edit
	for _, s := range steps {
		switch s.op {
		case contracts.OpSubstitute:
			sChar := g.refNote(s.pos)
			tChar := g.perfNote(s.tPos, s.pos, g.ref[s.pos].Pitch-g.perf[s.tPos].Pitch)
			sChar.Confidence = g.timing(s.pos, s.tPos)
			tChar.Confidence = sChar.Confidence
			out = append(out, contracts.Edit{Operation: s.op, Pos: s.pos, TPos: s.tPos, SChar: sChar, TChar: tChar})
		case contracts.OpDelete:
			sChar := g.refNote(s.pos)
			sChar.Confidence = contracts.MaxConfidence
			out = append(out, contracts.Edit{Operation: s.op, Pos: s.pos, TPos: s.tPos, SChar: sChar})
		case contracts.OpInsert:
			slot := min(s.pos, len(g.ref)-1)
			tChar := g.perfNote(s.tPos, slot, 0)
			tChar.Confidence = loudness(g.perf[s.tPos].Velocity)
			out = append(out, contracts.Edit{Operation: s.op, Pos: s.pos, TPos: s.tPos, TChar: tChar})
		}
	}
	return out
}

func (g *grader) refNote(i int) *contracts.NoteRef {
	n := g.ref[i]
	page, box := g.layout.Box(i, n.Pitch)
	return &contracts.NoteRef{
		Pitch: n.Pitch, StartTime: n.StartTime, Duration: n.Duration, Velocity: n.Velocity,
		Page: page, BBox: box, ID: i,
	}
}

// perfNote places performed note j at reference slot, shifted by the pitch difference.
func (g *grader) perfNote(j, slot, semitones int) *contracts.NoteRef {
	n := g.perf[j]
	r := &contracts.NoteRef{
		Pitch: n.Pitch, StartTime: n.StartTime, Duration: n.Duration, Velocity: n.Velocity, ID: j,
	}
	if slot < 0 {
		return r
	}
	page, box := g.layout.Box(slot, n.Pitch)
	if semitones == 0 {
		// Inserted notes sit between their neighbours.
		shift := g.layout.NoteWidth / 2
		box[0] += shift
		box[2] += shift
	}
	r.Page, r.BBox = page, box
	return r
}

func (g *grader) timing(i, j int) int {
	dev := math.Abs(g.perf[j].StartTime - g.offset - g.ref[i].StartTime)
	return contracts.MaxConfidence - min(4, int(dev/0.25))
}

func loudness(velocity float64) int {
	return max(contracts.MinConfidence, min(contracts.MaxConfidence, 1+int(math.Round(velocity*4))))
}

// unstableRate is the standard deviation, in seconds, of onset deviations over paired notes.
func (g *grader) unstableRate(steps []step) float64 {
	var devs []float64
	for _, s := range steps {
		if s.op == "" || s.op == contracts.OpSubstitute {
			devs = append(devs, g.perf[s.tPos].StartTime-g.offset-g.ref[s.pos].StartTime)
		}
	}
	if len(devs) < 2 {
		return 0
	}
	var mean float64
	for _, d := range devs {
		mean += d
	}
	mean /= float64(len(devs))
	var v float64
	for _, d := range devs {
		v += (d - mean) * (d - mean)
	}
	return math.Sqrt(v / float64(len(devs)))
}

// tempoSectionSize is the number of onsets per tempo estimate.
const tempoSectionSize = 8

// tempoSections estimates a beat-per-onset tempo over consecutive groups of performed notes.
func tempoSections(perf []contracts.NoteEvent) []contracts.TempoSection {
	var out []contracts.TempoSection
	for start := 0; start+1 < len(perf); start += tempoSectionSize - 1 {
		end := min(start+tempoSectionSize-1, len(perf)-1)
		span := perf[end].StartTime - perf[start].StartTime
		if span <= 0 {
			continue
		}
		out = append(out, contracts.TempoSection{
			StartTime: perf[start].StartTime,
			EndTime:   perf[end].EndTime(),
			BPM:       60 * float64(end-start) / span,
		})
	}
	return out
}
