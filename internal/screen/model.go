package screen

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/models"
)

// Lifecycle receives the screen's start, pause/resume and quit events.
type Lifecycle interface {
	Activate()
	Resume()
	Pause()
	Close()
}

type toastExpiredMsg struct{ seq int }

// surface is the state the controller writes through its View. It is only
// touched on the bubbletea loop, from runMsg functions.
type surface struct {
	hint      string
	toast     *models.Notification
	toastSeq  int
	uploading bool
	spin      bool

	dialog func(granted bool)
	denied bool

	pending []tea.Cmd
}

func (s *surface) SetHint(text string) { s.hint = text }

func (s *surface) Notify(n models.Notification) {
	s.toastSeq++
	seq := s.toastSeq
	s.toast = &n
	s.pending = append(s.pending, tea.Tick(n.Duration(), func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	}))
}

func (s *surface) SetUploading(uploading bool) {
	if uploading && !s.uploading {
		s.spin = true
	}
	s.uploading = uploading
}

// prompter shows the camera dialog. Granted is decided up front: stations
// configured to ask start out not granted.
type prompter struct {
	s       *surface
	granted bool
}

func (p prompter) Granted() bool { return p.granted }

func (p prompter) Request(respond func(granted bool)) { p.s.dialog = respond }

type Model struct {
	styles   Styles
	lc       Lifecycle
	kb       *KeyboardScanner
	logger   *zap.Logger
	endpoint string

	input   textinput.Model
	spinner spinner.Model
	s       *surface

	paused   bool
	quitting bool
	width    int
}

func newModel(endpoint string, kb *KeyboardScanner, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "scan or type a code, then Enter"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	return Model{
		styles:   DefaultStyles(),
		kb:       kb,
		logger:   logger,
		endpoint: endpoint,
		input:    ti,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		s:        &surface{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return runMsg(func() {
			if m.lc != nil {
				m.lc.Activate()
				m.lc.Resume()
			}
		})
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case runMsg:
		msg()

	case toastExpiredMsg:
		if msg.seq == m.s.toastSeq {
			m.s.toast = nil
		}

	case spinner.TickMsg:
		if m.s.uploading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-6, 10)

	case tea.KeyMsg:
		return m.handleKey(msg)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, m.flush(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.shutdown()
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlP:
		if m.lc != nil {
			if m.paused {
				m.lc.Resume()
			} else {
				m.lc.Pause()
			}
		}
		m.paused = !m.paused
		return m, m.flush()
	}

	if m.s.dialog != nil {
		switch strings.ToLower(msg.String()) {
		case "y":
			m.answer(true)
		case "n":
			m.answer(false)
		}
		return m, m.flush()
	}

	if msg.Type == tea.KeyEnter {
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text != "" && !m.kb.Submit(text) {
			m.logger.Debug("scanner not armed, line discarded")
		}
		return m, m.flush()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, m.flush(cmd)
}

func (m Model) answer(granted bool) {
	respond := m.s.dialog
	m.s.dialog = nil
	m.s.denied = !granted
	respond(granted)
}

func (m Model) shutdown() {
	if m.lc != nil {
		m.lc.Pause()
		m.lc.Close()
	}
}

// flush collects the commands the controller queued on the surface.
func (m Model) flush(cmds ...tea.Cmd) tea.Cmd {
	cmds = append(cmds, m.s.pending...)
	m.s.pending = nil
	if m.s.spin {
		m.s.spin = false
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("scanrelay → " + m.endpoint))
	b.WriteString("\n\n")

	if m.s.hint != "" {
		b.WriteString(m.styles.Hint.Render("Last scan: " + m.s.hint))
	} else {
		b.WriteString(m.styles.Waiting.Render("Waiting for a code"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")

	if t := m.s.toast; t != nil {
		b.WriteString("\n")
		b.WriteString(m.toastStyle(t.Kind).Render(t.Text))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render("esc quit • ctrl+p pause/resume"))
	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.s.dialog != nil:
		return m.styles.Dialog.Render("Allow camera access? [y/n]")
	case m.s.denied:
		return m.styles.Error.Render("Camera permission denied. Scanner inactive.")
	case m.paused:
		return m.styles.Warning.Render("Paused (ctrl+p to resume)")
	case m.s.uploading:
		return lipgloss.JoinHorizontal(lipgloss.Top, m.spinner.View(), m.styles.Status.Render("Sending scan result"))
	default:
		return m.styles.Status.Render("Ready to scan")
	}
}

func (m Model) toastStyle(kind models.NotificationKind) lipgloss.Style {
	switch kind {
	case models.NotifySent:
		return m.styles.Success
	case models.NotifyFailed, models.NotifyError:
		return m.styles.Error
	case models.NotifyScannerError:
		return m.styles.Warning
	default:
		return m.styles.Info
	}
}
