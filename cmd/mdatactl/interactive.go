package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/safeclient/mdata-ffi/engine"
	"github.com/safeclient/mdata-ffi/mdata"
	"github.com/safeclient/mdata-ffi/wire"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	argStyle = lipgloss.NewStyle().
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

type command struct {
	name string
	args []string
	run  func(ctx context.Context, s *session, args []string) (string, error)
}

// session holds the objects the interactive loop operates on.
type session struct {
	dispatcher *engine.LocalDispatcher
	client     *mdata.Client
}

func infoFor(name string, tag uint64) wire.Info {
	return wire.Info{
		Name:    wire.XorName(sha256.Sum256([]byte(name))),
		TypeTag: tag,
	}
}

func commands() []command {
	return []command{
		{
			name: "put",
			args: []string{"name", "type_tag"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				tag, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return "", fmt.Errorf("type_tag: %w", err)
				}
				perms, err := s.client.NewPermissions(ctx)
				if err != nil {
					return "", err
				}
				defer perms.Free(ctx)
				if err := perms.Insert(ctx, 1, wire.PermissionSet{
					Read: true, Insert: true, Update: true, Delete: true, ManagePermissions: true,
				}); err != nil {
					return "", err
				}
				entries, err := s.client.NewEntries(ctx)
				if err != nil {
					return "", err
				}
				defer entries.Free(ctx)
				if err := s.client.Put(ctx, infoFor(args[0], tag), perms, entries); err != nil {
					return "", err
				}
				return "stored", nil
			},
		},
		{
			name: "get",
			args: []string{"name", "type_tag", "key"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				tag, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return "", fmt.Errorf("type_tag: %w", err)
				}
				val, err := s.client.GetValue(ctx, infoFor(args[0], tag), []byte(args[2]))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%q (version %d)", val.Content, val.Version), nil
			},
		},
		{
			name: "insert",
			args: []string{"name", "type_tag", "key", "value"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				return mutate(ctx, s, args[0], args[1], func(ctx context.Context, a *mdata.EntryActions) error {
					return a.Insert(ctx, []byte(args[2]), []byte(args[3]))
				})
			},
		},
		{
			name: "update",
			args: []string{"name", "type_tag", "key", "value", "version"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				version, err := strconv.ParseUint(args[4], 10, 64)
				if err != nil {
					return "", fmt.Errorf("version: %w", err)
				}
				return mutate(ctx, s, args[0], args[1], func(ctx context.Context, a *mdata.EntryActions) error {
					return a.Update(ctx, []byte(args[2]), []byte(args[3]), version)
				})
			},
		},
		{
			name: "delete",
			args: []string{"name", "type_tag", "key", "version"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				version, err := strconv.ParseUint(args[3], 10, 64)
				if err != nil {
					return "", fmt.Errorf("version: %w", err)
				}
				return mutate(ctx, s, args[0], args[1], func(ctx context.Context, a *mdata.EntryActions) error {
					return a.Delete(ctx, []byte(args[2]), version)
				})
			},
		},
		{
			name: "entries",
			args: []string{"name", "type_tag"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				tag, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return "", fmt.Errorf("type_tag: %w", err)
				}
				list, err := s.client.ListEntries(ctx, infoFor(args[0], tag))
				if err != nil {
					return "", err
				}
				if len(list) == 0 {
					return "no entries", nil
				}
				var b strings.Builder
				for _, e := range list {
					fmt.Fprintf(&b, "%q = %q (version %d)\n", e.Key, e.Value.Content, e.Value.Version)
				}
				return strings.TrimRight(b.String(), "\n"), nil
			},
		},
		{
			name: "version",
			args: []string{"name", "type_tag"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				tag, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return "", fmt.Errorf("type_tag: %w", err)
				}
				v, err := s.client.GetVersion(ctx, infoFor(args[0], tag))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("shell version %d", v), nil
			},
		},
		{
			name: "serialise",
			args: []string{"name", "type_tag"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				tag, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return "", fmt.Errorf("type_tag: %w", err)
				}
				blob, err := s.client.InfoSerialise(ctx, infoFor(args[0], tag))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%x", blob), nil
			},
		},
	}
}

func mutate(ctx context.Context, s *session, name, tagStr string, stage func(context.Context, *mdata.EntryActions) error) (string, error) {
	tag, err := strconv.ParseUint(tagStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("type_tag: %w", err)
	}
	actions, err := s.client.NewEntryActions(ctx)
	if err != nil {
		return "", err
	}
	defer actions.Free(ctx)
	if err := stage(ctx, actions); err != nil {
		return "", err
	}
	if err := s.client.MutateEntries(ctx, infoFor(name, tag), actions); err != nil {
		return "", err
	}
	return "applied", nil
}

type modelState int

const (
	stateSelectCmd modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	session  *session
	cmds     []command
	inputs   []textinput.Model
	result   string
	selected int
	focusIdx int
	state    modelState
}

type callResultMsg struct {
	err    error
	result string
}

func newInteractiveModel() *interactiveModel {
	d := engine.NewLocalDispatcher()
	return &interactiveModel{
		session: &session{dispatcher: d, client: mdata.NewClient(d)},
		cmds:    commands(),
		state:   stateSelectCmd,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				m.session.dispatcher.Close(context.Background())
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectCmd && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCmd && m.selected < len(m.cmds)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectCmd:
				m.prepareInputs()
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.runCommand

			case stateShowResult:
				m.state = stateSelectCmd
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectCmd
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectCmd
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	c := m.cmds[m.selected]
	m.inputs = make([]textinput.Model, len(c.args))
	for i, arg := range c.args {
		ti := textinput.New()
		ti.Placeholder = arg
		ti.Prompt = arg + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) runCommand() tea.Msg {
	c := m.cmds[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = input.Value()
	}
	result, err := c.run(context.Background(), m.session, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mdatactl"))
	b.WriteString(" local engine\n\n")

	switch m.state {
	case stateSelectCmd:
		b.WriteString("Select an operation:\n\n")
		for i, c := range m.cmds {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatCmd(c)))
			} else {
				b.WriteString(cursor + m.formatCmd(c))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInputArgs:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Running %s\n\n", cmdStyle.Render(c.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateShowResult:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", cmdStyle.Render(c.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatCmd(c command) string {
	var args []string
	for _, a := range c.args {
		args = append(args, argStyle.Render(a))
	}
	return cmdStyle.Render(c.name) + "(" + strings.Join(args, ", ") + ")"
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
