package screen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrylevesque/scanrelay/internal/controller"
	"github.com/harrylevesque/scanrelay/internal/models"
	"github.com/harrylevesque/scanrelay/internal/scanner"
	"github.com/harrylevesque/scanrelay/internal/upload"
)

type lifecycleRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (l *lifecycleRecorder) record(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *lifecycleRecorder) Activate() { l.record("activate") }
func (l *lifecycleRecorder) Resume()   { l.record("resume") }
func (l *lifecycleRecorder) Pause()    { l.record("pause") }
func (l *lifecycleRecorder) Close()    { l.record("close") }

func (l *lifecycleRecorder) got() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeLine(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, runes(string(r)))
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func TestPump_PreservesOrder(t *testing.T) {
	p := newPump()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		p.push(func() { got = append(got, i) })
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := make(chan tea.Msg, 8)
	done := make(chan struct{})
	go func() {
		p.run(ctx, func(msg tea.Msg) { msgs <- msg })
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case msg := <-msgs:
			fn, ok := msg.(runMsg)
			require.True(t, ok)
			fn()
		case <-time.After(2 * time.Second):
			t.Fatal("pump did not forward")
		}
	}
	assert.Equal(t, []int{0, 1, 2}, got)

	// pushes after start are picked up too
	p.push(func() {})
	select {
	case <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("late push not forwarded")
	}

	cancel()
	<-done
}

func TestPump_PushDoesNotBlockWithoutRunner(t *testing.T) {
	p := newPump()
	for i := 0; i < 100; i++ {
		p.push(func() {})
	}
	assert.Len(t, p.take(), 100)
	assert.Empty(t, p.take())
}

func TestSurface_HintAndToast(t *testing.T) {
	s := New(Options{Endpoint: "http://localhost:8080/api/handle-scan"})
	m := s.model

	m, _ = update(t, m, runMsg(func() {
		s.View().SetHint("ITEM-42")
		s.View().Notify(models.Notification{Kind: models.NotifySent, Text: controller.MsgSent})
	}))

	out := m.View()
	assert.Contains(t, out, "Last scan: ITEM-42")
	assert.Contains(t, out, controller.MsgSent)
	assert.Contains(t, out, "localhost:8080")
}

func TestSurface_ToastExpiry(t *testing.T) {
	m := New(Options{}).model

	_, cmd := update(t, m, runMsg(func() {
		m.s.Notify(models.Notification{Kind: models.NotifyFailed, Text: controller.MsgFailed})
	}))
	assert.NotNil(t, cmd, "expiry tick scheduled")
	first := m.s.toastSeq

	m.s.Notify(models.Notification{Kind: models.NotifyError, Text: controller.MsgError})

	// the first toast's timer must not clear the second toast
	m, _ = update(t, m, toastExpiredMsg{seq: first})
	assert.Contains(t, m.View(), controller.MsgError)

	m, _ = update(t, m, toastExpiredMsg{seq: m.s.toastSeq})
	assert.NotContains(t, m.View(), controller.MsgError)
}

func TestSurface_Uploading(t *testing.T) {
	m := New(Options{}).model

	m, cmd := update(t, m, runMsg(func() { m.s.SetUploading(true) }))
	assert.NotNil(t, cmd, "spinner started")
	assert.Contains(t, m.View(), "Sending scan result")

	m, _ = update(t, m, runMsg(func() { m.s.SetUploading(false) }))
	assert.Contains(t, m.View(), "Ready to scan")
}

func TestKeyboard_SubmitWhenArmed(t *testing.T) {
	s := New(Options{})
	var got []scanner.Result
	s.Scanner().SetDecodeCallback(func(r scanner.Result) { got = append(got, r) })

	m := typeLine(t, s.model, "IGNORED")
	assert.Empty(t, got, "not armed")
	assert.Equal(t, "", m.input.Value())

	require.NoError(t, s.Scanner().StartPreview())
	m = typeLine(t, m, "  ABC-123 ")
	m = typeLine(t, m, "SECOND")

	require.Len(t, got, 1)
	assert.Equal(t, "ABC-123", got[0].Text)
	assert.Equal(t, FormatKeyboard, got[0].Format)
	assert.False(t, s.Scanner().Armed())
}

func TestPermissionDialog(t *testing.T) {
	for _, tt := range []struct {
		key     string
		granted bool
		status  string
	}{
		{"y", true, "Ready to scan"},
		{"n", false, "Camera permission denied"},
	} {
		t.Run(tt.key, func(t *testing.T) {
			s := New(Options{AskPermission: true})
			p := s.Prompter()
			assert.False(t, p.Granted())

			var answers []bool
			m, _ := update(t, s.model, runMsg(func() {
				p.Request(func(granted bool) { answers = append(answers, granted) })
			}))
			assert.Contains(t, m.View(), "Allow camera access?")

			// other keys do not answer
			m, _ = update(t, m, runes("x"))
			assert.Empty(t, answers)

			m, _ = update(t, m, runes(tt.key))
			assert.Equal(t, []bool{tt.granted}, answers)
			assert.Contains(t, m.View(), tt.status)
		})
	}
}

func TestKeys_LifecycleAndQuit(t *testing.T) {
	s := New(Options{})
	lc := &lifecycleRecorder{}
	s.Attach(lc)
	m := s.model

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Contains(t, m.View(), "Paused")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.NotContains(t, m.View(), "Paused")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, m.quitting)
	assert.Equal(t, "", m.View())

	assert.Equal(t, []string{"pause", "resume", "pause", "close"}, lc.got())
}

func TestInit_ActivatesAndResumes(t *testing.T) {
	s := New(Options{})
	lc := &lifecycleRecorder{}
	s.Attach(lc)

	cmd := s.model.Init()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)

	for _, c := range batch {
		if fn, ok := c().(runMsg); ok {
			fn()
		}
	}
	assert.Equal(t, []string{"activate", "resume"}, lc.got())
}

// TestScreen_ScanFlow drives a real controller through the model, draining
// dispatched functions the way the pump would.
func TestScreen_ScanFlow(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Options{Endpoint: srv.URL})
	var mu sync.Mutex
	var queued []func()
	dispatch := func(fn func()) {
		mu.Lock()
		queued = append(queued, fn)
		mu.Unlock()
	}
	clk := testclock.NewClock(time.Now())
	ctrl := controller.New(controller.Config{
		Scanner:     s.Scanner(),
		Uploader:    upload.NewClient(srv.URL),
		View:        s.View(),
		Permissions: s.Prompter(),
		Dispatch:    dispatch,
		Clock:       clk,
	})
	s.Attach(ctrl)
	m := s.model

	drain := func() {
		mu.Lock()
		fns := queued
		queued = nil
		mu.Unlock()
		for _, fn := range fns {
			m, _ = update(t, m, runMsg(fn))
		}
	}

	m, _ = update(t, m, runMsg(func() { ctrl.Activate() }))
	require.True(t, s.Scanner().Armed())

	m = typeLine(t, m, "PKG-1")
	drain()
	assert.Contains(t, m.View(), "Last scan: PKG-1")
	assert.Contains(t, m.View(), "Sending scan result")
	close(release)

	require.NoError(t, clk.WaitAdvance(controller.RearmDelay, 2*time.Second, 1))
	ctrl.Wait()
	drain()

	assert.Contains(t, m.View(), controller.MsgSent)
	assert.Contains(t, m.View(), "Waiting for a code")
	assert.True(t, s.Scanner().Armed(), "re-armed after the delay")
}
