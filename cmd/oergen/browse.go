package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/asn1-oer/generator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	goStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newBrowseCmd(in *inputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <schema>",
		Short: "browse the generated types and try encodings interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs a terminal")
			}
			out, err := in.generate(args[0])
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(args[0], out), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type browseState int

const (
	stateSelectType browseState = iota
	stateInputValue
	stateShowResult
)

type browseModel struct {
	err      error
	out      *generator.Output
	filename string
	result   string
	input    textinput.Model
	selected int
	state    browseState
}

func newBrowseModel(filename string, out *generator.Output) *browseModel {
	return &browseModel{filename: filename, out: out, state: stateSelectType}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputValue {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectType && m.selected < len(m.out.Units)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectType:
				if len(m.out.Units) == 0 {
					return m, nil
				}
				m.prepareInput()
				m.state = stateInputValue
				return m, textinput.Blink

			case stateInputValue:
				m.result, m.err = m.run(m.input.Value())
				m.state = stateShowResult
				return m, nil

			case stateShowResult:
				m.state = stateInputValue
				m.result, m.err = "", nil
				return m, nil
			}

		case "esc":
			m.state = stateSelectType
			m.result, m.err = "", nil
			return m, nil
		}
	}

	if m.state == stateInputValue {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "{member: 1} or hex:0102"
	ti.Prompt = "value: "
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

// run decodes input prefixed with "hex:" and encodes anything else as a
// YAML value.
func (m *browseModel) run(input string) (string, error) {
	u := m.out.Units[m.selected]
	if s, ok := strings.CutPrefix(strings.TrimSpace(input), "hex:"); ok {
		data, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return "", err
		}
		v, n, err := m.out.Decode(u.Module, u.Name, data)
		if err != nil {
			return "", err
		}
		text, err := yaml.Marshal(generator.Printable(v))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%d octets)", text, n), nil
	}

	var v any
	if err := yaml.Unmarshal([]byte(input), &v); err != nil {
		return "", err
	}
	b, err := encodeValue(m.out, u.Module, u.Name, v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("OER Types"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.out.Units) == 0 {
		b.WriteString("No types could be generated.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectType:
		b.WriteString("Select a type:\n\n")
		for i, u := range m.out.Units {
			line := fmt.Sprintf("%s.%s  %s", u.Module, u.Name, u.GoName)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + typeStyle.Render(line))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter try • q quit"))

	case stateInputValue, stateShowResult:
		u := m.out.Units[m.selected]
		b.WriteString(typeStyle.Render(u.Module + "." + u.Name))
		b.WriteString("\n\n")
		b.WriteString(goStyle.Render(strings.TrimSpace(u.Layout)))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.state == stateShowResult {
			if m.err != nil {
				b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			} else {
				b.WriteString(resultStyle.Render(m.result))
			}
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter edit • esc back • q quit"))
		} else {
			b.WriteString(helpStyle.Render("enter run • esc back"))
		}
	}
	return b.String()
}
