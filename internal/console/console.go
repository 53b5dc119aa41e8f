// Package console runs a station without a terminal UI. Feedback is written
// as plain lines, and a single goroutine plays the foreground context.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/harrylevesque/scanrelay/internal/models"
)

// View writes hint changes and notifications as timestamped lines.
type View struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewView(w io.Writer) *View {
	return &View{w: w, now: time.Now}
}

func (v *View) SetHint(text string) {
	if text == "" {
		v.line("ready")
		return
	}
	v.line("Last scan: " + text)
}

func (v *View) Notify(n models.Notification) {
	v.line(fmt.Sprintf("[%s] %s", n.Kind, n.Text))
}

func (v *View) SetUploading(uploading bool) {
	if uploading {
		v.line("sending...")
	}
}

func (v *View) line(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "%s %s\n", v.now().Format("15:04:05"), s)
}

// Lifecycle is the part of the controller the loop drives.
type Lifecycle interface {
	Activate()
	Resume()
	Pause()
	Close()
}

// Loop is the foreground context of a headless station. Dispatch queues a
// function and returns at once; Run executes queued functions in order.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run activates lc, then runs dispatched functions until ctx is done, and
// pauses and closes lc on the way out.
func (l *Loop) Run(ctx context.Context, lc Lifecycle) error {
	l.Dispatch(func() {
		lc.Activate()
		lc.Resume()
	})
	defer func() {
		lc.Pause()
		lc.Close()
	}()

	for {
		l.mu.Lock()
		fns := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range fns {
			fn()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}
