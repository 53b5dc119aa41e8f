package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/harrylevesque/scanrelay/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixedView(buf *bytes.Buffer) *View {
	v := NewView(buf)
	v.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return v
}

func TestView_Lines(t *testing.T) {
	var buf bytes.Buffer
	v := fixedView(&buf)

	v.SetHint("ITEM-1")
	v.SetUploading(true)
	v.SetUploading(false)
	v.Notify(models.Notification{Kind: models.NotifySent, Text: "Scan result sent successfully"})
	v.SetHint("")

	assert.Equal(t, strings.Join([]string{
		"09:30:00 Last scan: ITEM-1",
		"09:30:00 sending...",
		"09:30:00 [sent] Scan result sent successfully",
		"09:30:00 ready",
		"",
	}, "\n"), buf.String())
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) Activate() { r.add("activate") }
func (r *recorder) Resume()   { r.add("resume") }
func (r *recorder) Pause()    { r.add("pause") }
func (r *recorder) Close()    { r.add("close") }

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestLoop_RunsInOrderOnOneGoroutine(t *testing.T) {
	l := NewLoop()
	lc := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan int, 10)
	for i := 0; i < 5; i++ {
		i := i
		l.Dispatch(func() {
			// dispatching from the foreground itself must not block
			if i == 0 {
				l.Dispatch(func() { ran <- 99 })
			}
			ran <- i
		})
	}

	done := make(chan error)
	go func() { done <- l.Run(ctx, lc) }()

	var got []int
	for len(got) < 6 {
		select {
		case n := <-ran:
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("loop stalled after %v", got)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 99}, got)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"activate", "resume", "pause", "close"}, lc.got())
}
