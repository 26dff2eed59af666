package scoringstub

import "math"

// Layout is a synthetic engraving: reference notes fill rows left to right, rows fill pages top to bottom,
// and a note's height within its row follows its pitch.
type Layout struct {
	PageWidth, PageHeight float64
	Margin                float64
	PerRow, Rows          int
	NoteWidth, NoteHeight float64
}

// NewLayout lays notes out on pages of the first declared size.
func NewLayout(pageSizes []float64) Layout {
	l := Layout{PageWidth: 1240, PageHeight: 1754, Margin: 80, PerRow: 16, Rows: 12, NoteWidth: 24, NoteHeight: 24}
	if len(pageSizes) >= 2 && pageSizes[0] > 0 && pageSizes[1] > 0 {
		l.PageWidth, l.PageHeight = pageSizes[0], pageSizes[1]
	}
	return l
}

// PerPage is the number of notes on one page.
func (l Layout) PerPage() int {
	return l.PerRow * l.Rows
}

// Pages is the flat page-size table for n notes, at least one page.
func (l Layout) Pages(n int) []float64 {
	pages := max(1, (n+l.PerPage()-1)/l.PerPage())
	out := make([]float64, 0, 2*pages)
	for i := 0; i < pages; i++ {
		out = append(out, l.PageWidth, l.PageHeight)
	}
	return out
}

// Box returns the page and [x1,y1,x2,y2] of slot i drawn at pitch.
func (l Layout) Box(i, pitch int) (int, []float64) {
	page := i / l.PerPage()
	k := i % l.PerPage()
	row, col := k/l.PerRow, k%l.PerRow

	stepX := (l.PageWidth - 2*l.Margin) / float64(l.PerRow)
	stepY := (l.PageHeight - 2*l.Margin) / float64(l.Rows)
	// Pitches 36..96 span the row from bottom to top.
	height := math.Max(0, math.Min(1, float64(pitch-36)/60))

	x := l.Margin + float64(col)*stepX + (stepX-l.NoteWidth)/2
	y := l.Margin + float64(row)*stepY + (1-height)*(stepY-l.NoteHeight)
	return page, []float64{x, y, x + l.NoteWidth, y + l.NoteHeight}
}
