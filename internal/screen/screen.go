// Package screen is the terminal scan screen: a hint area showing the last
// decoded code, transient toasts, the camera permission dialog and a
// keyboard-wedge scanner input.
package screen

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/controller"
	"github.com/harrylevesque/scanrelay/internal/permission"
)

type Options struct {
	Endpoint string
	// AskPermission shows the camera dialog before the scanner is armed.
	AskPermission bool
	Logger        *zap.Logger
	// ProgramOptions are passed to tea.NewProgram, e.g. WithInput in tests.
	ProgramOptions []tea.ProgramOption
}

type Screen struct {
	model   Model
	pump    *pump
	prompt  prompter
	options []tea.ProgramOption
}

func New(opts Options) *Screen {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := newModel(opts.Endpoint, NewKeyboardScanner(), logger)
	return &Screen{
		model:   m,
		pump:    newPump(),
		prompt:  prompter{s: m.s, granted: !opts.AskPermission},
		options: opts.ProgramOptions,
	}
}

// View is the controller's view of the screen.
func (s *Screen) View() controller.View { return s.model.s }

// Dispatch runs fn on the bubbletea loop. It never blocks.
func (s *Screen) Dispatch(fn func()) { s.pump.push(fn) }

func (s *Screen) Prompter() permission.Prompter { return s.prompt }

// Scanner is the keyboard-wedge scanner fed by the input line.
func (s *Screen) Scanner() *KeyboardScanner { return s.model.kb }

// Attach sets the lifecycle the screen drives. It must be called before Run.
func (s *Screen) Attach(lc Lifecycle) { s.model.lc = lc }

// Run shows the screen until the operator quits or ctx is done. The
// lifecycle is paused and closed on the way out either way.
func (s *Screen) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, s.options...)
	p := tea.NewProgram(s.model, opts...)
	go s.pump.run(ctx, p.Send)

	final, err := p.Run()
	if m, ok := final.(Model); !ok || !m.quitting {
		s.model.shutdown()
	}
	if err != nil && ctx.Err() != nil {
		// cancelled by the caller
		return nil
	}
	return err
}
