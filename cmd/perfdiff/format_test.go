package main

import (
	"bytes"
	"testing"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
)

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C4", noteName(&contracts.NoteRef{Pitch: 60}))
	assert.Equal(t, "A#-1", noteName(&contracts.NoteRef{Pitch: 10}))
	assert.Equal(t, "-", noteName(nil))
	assert.Equal(t, "-", noteName(&contracts.NoteRef{Pitch: -3}))
	assert.Equal(t, "-", noteName(&contracts.NoteRef{Pitch: 200}))
}

func TestPrintResultWithMalformedPitch(t *testing.T) {
	var b bytes.Buffer
	assert.NotPanics(t, func() {
		printResult(&b, &contracts.ScoringResult{Edits: []contracts.Edit{{
			Operation: contracts.OpSubstitute,
			SChar:     &contracts.NoteRef{Pitch: -13},
			TChar:     &contracts.NoteRef{Pitch: 61},
		}}})
	})
	assert.Contains(t, b.String(), "C#4")
}
