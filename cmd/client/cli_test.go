package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/config"
	"github.com/harrylevesque/scanrelay/internal/scanner"
	"github.com/harrylevesque/scanrelay/internal/screen"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCANRELAY_ENDPOINT", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scanrelay dev\n", out)
}

func TestSend(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		got = append(got, r.PostForm.Get("scanResult"))
		mu.Unlock()
		if r.PostForm.Get("scanResult") == "missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "send", "ITEM 1", "--endpoint", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "sent")

	_, err = execute(t, "send", "missing", "--endpoint", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ITEM 1", "missing"}, got)
}

func TestSend_NeedsOneArg(t *testing.T) {
	_, err := execute(t, "send")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	t.Setenv("SCANRELAY_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "station", "config.yaml")
	run := func(args ...string) (string, error) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"config", "init", "--config", path}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("--endpoint", "http://receiver:8080/api/handle-scan")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://receiver:8080/api/handle-scan", cfg.Endpoint)
	assert.Equal(t, config.SourceKeyboard, cfg.Scanner.Source)

	_, err = run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run("--force", "--log-level", "debug")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://receiver:8080/api/handle-scan", cfg.Endpoint, "kept from the existing file")
}

func TestBuildScanner(t *testing.T) {
	kb := screen.NewKeyboardScanner()
	tests := []struct {
		name     string
		source   string
		keyboard scanner.Scanner
		want     any
		wantErr  string
	}{
		{"keyboard on screen", config.SourceKeyboard, kb, kb, ""},
		{"keyboard headless", config.SourceKeyboard, nil, nil, "needs the screen"},
		{"dir", config.SourceDir, nil, &scanner.DirScanner{}, ""},
		{"device", config.SourceDevice, kb, &scanner.LineScanner{}, ""},
		{"stdin headless", config.SourceStdin, nil, &scanner.LineScanner{}, ""},
		{"stdin on screen", config.SourceStdin, kb, nil, "stdin belongs to the screen"},
		{"unknown", "webcam", nil, nil, "unknown scanner source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Scanner.Source = tt.source
			cfg.Scanner.Device = "/dev/null"

			sc, err := buildScanner(cfg, strings.NewReader(""), tt.keyboard, zap.NewNop())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == kb {
				assert.Same(t, kb, sc)
			} else {
				assert.IsType(t, tt.want, sc)
			}
		})
	}
}

func TestRunStation_Headless(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		got = append(got, r.PostForm.Get("scanResult"))
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Screen.Headless = true
	cfg.Scanner.Source = config.SourceStdin
	cfg.Logging.File = filepath.Join(t.TempDir(), "station.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runStation(ctx, cfg, strings.NewReader("PKG-77\n"), out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[sent] Scan result sent successfully")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "Last scan: PKG-77")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("station did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PKG-77"}, got)
}
