package screen

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// runMsg carries a dispatched function onto the bubbletea loop.
type runMsg func()

// pump forwards dispatched functions to the program in order. push never
// blocks, so it is safe to call from inside Update, where a direct
// Program.Send would deadlock.
type pump struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func newPump() *pump {
	return &pump{wake: make(chan struct{}, 1)}
}

func (p *pump) push(fn func()) {
	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pump) take() []func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fns := p.queue
	p.queue = nil
	return fns
}

// run sends queued functions until ctx is done.
func (p *pump) run(ctx context.Context, send func(tea.Msg)) {
	for {
		for _, fn := range p.take() {
			send(runMsg(fn))
		}
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
	}
}
