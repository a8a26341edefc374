package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a yes/no dialog run as its own program. It quits as soon
// as the user answers.
//
// Navigation: left/right/tab/shift+tab move focus between Yes and No.
// Enter activates the focused button. y/n/esc are shortcut accelerators.
type confirmModel struct {
	message   string
	focusYes  bool // Default is No, the safe choice for an overwrite.
	answered  bool
	confirmed bool

	width int
}

func newConfirmModel(message string) confirmModel {
	return confirmModel{message: message}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, confirmYesKey):
			return m.answer(true)

		case key.Matches(msg, confirmNoKey),
			key.Matches(msg, keys.Back),
			key.Matches(msg, keys.Quit):
			return m.answer(false)

		case key.Matches(msg, keys.Enter):
			return m.answer(m.focusYes)

		case key.Matches(msg, confirmLeft), key.Matches(msg, confirmRight),
			key.Matches(msg, confirmTab), key.Matches(msg, confirmShiftTab):
			m.focusYes = !m.focusYes
		}
	}
	return m, nil
}

func (m confirmModel) answer(yes bool) (tea.Model, tea.Cmd) {
	m.answered = true
	m.confirmed = yes
	return m, tea.Quit
}

// View renders a bordered dialog with the message and Yes / No buttons. The
// dialog disappears once answered so nothing is left on screen.
func (m confirmModel) View() string {
	if m.answered {
		return ""
	}

	width := 50
	if m.width > 0 && m.width-8 < width {
		width = max(m.width-8, 20)
	}
	question := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(m.message)

	var yesBtn, noBtn string
	if m.focusYes {
		yesBtn = dialogActiveButtonStyle.Render("Yes")
		noBtn = dialogButtonStyle.Render("No")
	} else {
		yesBtn = dialogButtonStyle.Render("Yes")
		noBtn = dialogActiveButtonStyle.Render("No")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yesBtn, "  ", noBtn)
	ui := lipgloss.JoinVertical(lipgloss.Center, question, "", buttons)
	return dialogBoxStyle.Render(ui) + "\n"
}

// Confirm shows a yes/no dialog on out, reading keys from in. Interrupting
// the dialog counts as a decline.
func Confirm(message string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(newConfirmModel(message), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("running confirm dialog: %w", err)
	}
	m, ok := final.(confirmModel)
	return ok && m.answered && m.confirmed, nil
}

// OverwritePrompt asks before a skill directory is replaced.
type OverwritePrompt struct {
	In  io.Reader
	Out io.Writer
}

// ConfirmOverwrite implements the engine's overwrite consent hook.
func (p OverwritePrompt) ConfirmOverwrite(name, path string) (bool, error) {
	msg := fmt.Sprintf("Skill %q already exists at\n%s\n\nReplace it?", name, path)
	return Confirm(msg, p.In, p.Out)
}
