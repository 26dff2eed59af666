package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leandrodaf/perfdiff/internal/capture"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/perfdiff"
	"github.com/spf13/cobra"
)

var keyboardScore string

func init() {
	keyboardCmd.Flags().StringVarP(&keyboardScore, "score", "s", "", "score id to play against")
	_ = keyboardCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(keyboardCmd)
}

var keyboardCmd = &cobra.Command{
	Use:   "keyboard",
	Short: "Play the score on the computer keyboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(
			perfdiff.WithSources(contracts.SourceKeyboard),
			perfdiff.WithSoundFeedback(),
			perfdiff.WithPreferencesWatch(),
		)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.SelectSource(contracts.SourceKeyboard); err != nil {
			return err
		}
		s.Navigate(keyboardScore)
		if err := s.Prepare(cmd.Context()); err != nil {
			return err
		}
		_, err = tea.NewProgram(newKeyboardModel(s.Keyboard, s.Controller(), s.SetPage)).Run()
		return err
	},
}

type piano interface {
	Press(key string) bool
	Octave() int
	Held() int
}

type recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*contracts.Recording, error)
	State() capture.State
}

type keyMap struct {
	Record   key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Record:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/stop")),
		PrevPage: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous page")),
		NextPage: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		Quit:     key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

type stoppedMsg struct {
	rec *contracts.Recording
	err error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("#2ea043")).Foreground(lipgloss.Color("#ffffff"))
	recStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d73a49"))
	keyStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type keyboardModel struct {
	piano    piano
	recorder recorder
	setPage  func(int)
	keys     keyMap

	page    int
	last    string
	result  string
	problem error
}

func newKeyboardModel(p piano, r recorder, setPage func(int)) keyboardModel {
	return keyboardModel{piano: p, recorder: r, setPage: setPage, keys: newKeyMap()}
}

func (m keyboardModel) Init() tea.Cmd {
	return nil
}

func (m keyboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stoppedMsg:
		m.problem = msg.err
		if msg.rec != nil {
			var b strings.Builder
			printRecording(&b, msg.rec)
			m.result = b.String()
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Record):
			return m.toggle()
		case key.Matches(msg, m.keys.PrevPage):
			if m.page > 0 {
				m.page--
				m.setPage(m.page)
			}
			return m, nil
		case key.Matches(msg, m.keys.NextPage):
			m.page++
			m.setPage(m.page)
			return m, nil
		}
		if m.piano.Press(msg.String()) {
			m.last = msg.String()
		}
	}
	return m, nil
}

func (m keyboardModel) toggle() (tea.Model, tea.Cmd) {
	switch m.recorder.State() {
	case capture.Idle, capture.Failed:
		m.problem = m.recorder.Start(context.Background())
		if m.problem == nil {
			m.result = ""
		}
		return m, nil
	case capture.Recording:
		r := m.recorder
		return m, func() tea.Msg {
			rec, err := r.Stop(context.Background())
			return stoppedMsg{rec: rec, err: err}
		}
	}
	return m, nil
}

func (m keyboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("perfdiff"))
	state := m.recorder.State()
	if state == capture.Recording {
		b.WriteString(" " + recStyle.Render("● REC"))
	} else {
		b.WriteString(" " + dimStyle.Render(state.String()))
	}
	fmt.Fprintf(&b, "  page %d  octave %d  held %d\n\n", m.page+1, m.piano.Octave(), m.piano.Held())

	row := []string{}
	for _, k := range []string{"a", "s", "d", "f", "g", "h", "j", "k", "l", ";"} {
		style := keyStyle
		if k == m.last {
			style = style.BorderForeground(lipgloss.Color("#f58c00"))
		}
		row = append(row, style.Render(k))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
	b.WriteString("\n")

	if m.problem != nil {
		msg := m.problem.Error()
		if contracts.IsUserVisible(m.problem) {
			msg = contracts.UserMessage(m.problem)
		}
		b.WriteString(errorStyle.Render(msg) + "\n")
	}
	if m.result != "" {
		b.WriteString("\n" + m.result)
	}
	help := []string{}
	for _, k := range []key.Binding{m.keys.Record, m.keys.PrevPage, m.keys.NextPage, m.keys.Quit} {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	help = append(help, "z/x octave")
	b.WriteString("\n" + dimStyle.Render(strings.Join(help, " • ")) + "\n")
	return b.String()
}
