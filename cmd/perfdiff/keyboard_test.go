package main

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leandrodaf/perfdiff/internal/capture"
	"github.com/leandrodaf/perfdiff/internal/input/keyboard"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	state  capture.State
	starts int
	rec    *contracts.Recording
}

func (f *fakeRecorder) Start(context.Context) error {
	f.starts++
	f.state = capture.Recording
	return nil
}

func (f *fakeRecorder) Stop(context.Context) (*contracts.Recording, error) {
	f.state = capture.Idle
	return f.rec, nil
}

func (f *fakeRecorder) State() capture.State { return f.state }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyboardModelRecordCycle(t *testing.T) {
	rec := &fakeRecorder{rec: &contracts.Recording{
		ComputedEdits: contracts.ScoringResult{Edits: []contracts.Edit{{Operation: contracts.OpDelete, Pos: 2, SChar: &contracts.NoteRef{Pitch: 64}}}},
	}}
	var m tea.Model = newKeyboardModel(keyboard.New(nil, time.Hour), rec, func(int) {})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, rec.starts)
	assert.Contains(t, m.View(), "REC")

	m, _ = m.Update(runes("a"))
	assert.Equal(t, "a", m.(keyboardModel).last)

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "1 edits")
	assert.Contains(t, m.View(), "E4")
}

func TestKeyboardModelPaging(t *testing.T) {
	var pages []int
	var m tea.Model = newKeyboardModel(keyboard.New(nil, time.Hour), &fakeRecorder{}, func(p int) { pages = append(pages, p) })

	m, _ = m.Update(runes("["))
	m, _ = m.Update(runes("]"))
	m, _ = m.Update(runes("]"))
	_, _ = m.Update(runes("["))
	assert.Equal(t, []int{1, 2, 1}, pages)
}

func TestKeyboardModelQuit(t *testing.T) {
	m := newKeyboardModel(keyboard.New(nil, time.Hour), &fakeRecorder{}, func(int) {})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
