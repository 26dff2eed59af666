package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d73a49")).Bold(true)
)

func opStyle(op contracts.Operation) lipgloss.Style {
	c := overlay.ColorFor(op)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
}

func noteName(n *contracts.NoteRef) string {
	if n == nil || !contracts.ValidPitch(n.Pitch) {
		return "-"
	}
	names := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	return fmt.Sprintf("%s%d", names[n.Pitch%12], n.Pitch/12-1)
}

func printResult(w io.Writer, result *contracts.ScoringResult) {
	counts := map[contracts.Operation]int{}
	for _, e := range result.Edits {
		counts[e.Operation]++
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d edits", len(result.Edits))))
	for _, op := range []contracts.Operation{contracts.OpSubstitute, contracts.OpDelete, contracts.OpInsert} {
		fmt.Fprintf(w, "  %s %d\n", opStyle(op).Render(fmt.Sprintf("%-10s", op)), counts[op])
	}
	for _, e := range result.Edits {
		fmt.Fprintf(w, "  %s ref #%d %s -> played #%d %s %s\n",
			opStyle(e.Operation).Render(fmt.Sprintf("%-10s", e.Operation)),
			e.Pos, noteName(e.SChar), e.TPos, noteName(e.TChar),
			dimStyle.Render(fmt.Sprintf("confidence %d", e.Confidence())))
	}
	if len(result.TempoSections) > 0 {
		fmt.Fprintln(w, headerStyle.Render("tempo"))
		for _, s := range result.TempoSections {
			fmt.Fprintf(w, "  %6.2fs - %6.2fs  %5.1f bpm\n", s.StartTime, s.EndTime, s.BPM)
		}
	}
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf("unstable rate %.2f", result.UnstableRate)))
}

func printRecording(w io.Writer, rec *contracts.Recording) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("recording"),
		dimStyle.Render(time.UnixMilli(rec.CreatedAt).Format(time.DateTime)))
	fmt.Fprintf(w, "  %d notes played\n", len(rec.PlayedNotes.Notes))
	printResult(w, &rec.ComputedEdits)
}
