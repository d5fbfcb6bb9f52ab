package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D32")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type consoleState int

const (
	stateInput consoleState = iota
	stateShowResult
)

type consoleModel struct {
	sess    *session.Session
	conn    h2gis.Conn
	dbPath  string
	input   textinput.Model
	history []string
	histIdx int
	state   consoleState

	header []string
	rows   [][]string
	count  int
	query  bool
	err    error
}

type resultMsg struct {
	err    error
	header []string
	rows   [][]string
	count  int
	query  bool
}

const historyLimit = 100

// maxRenderedRows bounds the result view; the full set still streams
// through the decoder, only the display truncates.
const maxRenderedRows = 200

func newConsoleModel(sess *session.Session, conn h2gis.Conn, dbPath string) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = "SELECT * FROM ..."
	ti.Prompt = "sql> "
	ti.Width = 80
	ti.Focus()

	return &consoleModel{
		sess:   sess,
		conn:   conn,
		dbPath: dbPath,
		input:  ti,
		state:  stateInput,
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "enter":
			switch m.state {
			case stateInput:
				sql := strings.TrimSpace(m.input.Value())
				if sql == "" {
					return m, nil
				}
				if strings.EqualFold(sql, "quit") || strings.EqualFold(sql, "exit") {
					return m, tea.Quit
				}
				m.remember(sql)
				return m, m.execute(sql)

			case stateShowResult:
				m.state = stateInput
				m.header, m.rows, m.err = nil, nil, nil
				m.input.SetValue("")
				m.input.Focus()
			}

		case "up":
			if m.state == stateInput && m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}

		case "down":
			if m.state == stateInput && m.histIdx < len(m.history) {
				m.histIdx++
				if m.histIdx == len(m.history) {
					m.input.SetValue("")
				} else {
					m.input.SetValue(m.history[m.histIdx])
					m.input.CursorEnd()
				}
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateInput
				m.header, m.rows, m.err = nil, nil, nil
				m.input.Focus()
			}
		}

	case resultMsg:
		m.header = msg.header
		m.rows = msg.rows
		m.count = msg.count
		m.query = msg.query
		m.err = msg.err
		m.state = stateShowResult
		m.input.Blur()
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *consoleModel) remember(sql string) {
	m.history = append(m.history, sql)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	m.histIdx = len(m.history)
}

// execute runs the statement off the UI loop and delivers a resultMsg.
func (m *consoleModel) execute(sql string) tea.Cmd {
	return func() tea.Msg {
		if !isQuery(sql) {
			n, err := m.sess.Execute(m.conn, sql)
			return resultMsg{count: n, err: err}
		}

		stmt, err := m.sess.Prepare(m.conn, sql)
		if err != nil {
			return resultMsg{err: err, query: true}
		}
		defer m.sess.CloseQuery(stmt)

		rs, err := m.sess.ExecutePrepared(stmt)
		if err != nil {
			return resultMsg{err: err, query: true}
		}
		defer m.sess.FreeResultSet(rs)

		var out resultMsg
		out.query = true
		for {
			buf, err := m.sess.FetchBatch(rs, 0)
			if err != nil {
				out.err = err
				return out
			}
			if buf == nil {
				break
			}
			if out.header == nil {
				for _, c := range buf.Columns() {
					out.header = append(out.header, c.Name)
				}
			}
			for {
				row, err := buf.Next()
				if err != nil {
					out.err = err
					return out
				}
				if row == nil {
					break
				}
				out.count++
				if len(out.rows) < maxRenderedRows {
					cells := make([]string, len(row))
					for i, v := range row {
						cells[i] = formatValue(v)
					}
					out.rows = append(out.rows, cells)
				}
			}
		}
		return out
	}
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("H2GIS SQL"))
	b.WriteString(" ")
	b.WriteString(m.dbPath)
	b.WriteString("\n\n")

	switch m.state {
	case stateInput:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter execute • ↑/↓ history • ctrl+c quit"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.query {
			if len(m.header) > 0 {
				b.WriteString(headerStyle.Render(strings.Join(m.header, " | ")))
				b.WriteString("\n")
				for _, row := range m.rows {
					b.WriteString(strings.Join(row, " | "))
					b.WriteString("\n")
				}
				if m.count > len(m.rows) {
					b.WriteString(helpStyle.Render(fmt.Sprintf("… %d more rows not shown\n", m.count-len(m.rows))))
				}
			}
			b.WriteString(countStyle.Render(fmt.Sprintf("(%d rows)", m.count)))
		} else {
			b.WriteString(countStyle.Render(fmt.Sprintf("Update count: %d", m.count)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter new statement • ctrl+c quit"))
	}

	return b.String()
}

func runInteractive(dbPath, user, password string, opts []session.Option) error {
	s, err := session.Open(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer s.Release()

	conn, err := s.Connect(dbPath, user, password)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.Load(conn); err != nil {
		return fmt.Errorf("load spatial extension: %w", err)
	}

	p := tea.NewProgram(newConsoleModel(s, conn, dbPath), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
