// Package controller runs the scan, upload, feedback and re-arm cycle of a
// scan station.
//
// Lifecycle methods (Activate, OnPermissionResult, Resume, Pause, Close) are
// called on the foreground context. Decode callbacks may arrive on any
// goroutine. Every view update goes through the Dispatcher, so the view is
// only ever touched on the foreground context.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/metrics"
	"github.com/harrylevesque/scanrelay/internal/models"
	"github.com/harrylevesque/scanrelay/internal/permission"
	"github.com/harrylevesque/scanrelay/internal/scanner"
)

// RearmDelay is the pause between an upload outcome and the next preview.
const RearmDelay = 2 * time.Second

const (
	MsgSent   = "Scan result sent successfully"
	MsgFailed = "Failed to send scan result"
	MsgError  = "Error sending scan result"
)

// View is the operator-facing surface: a hint area and transient toasts.
type View interface {
	SetHint(text string)
	Notify(n models.Notification)
	SetUploading(uploading bool)
}

// Uploader forwards one decoded text.
type Uploader interface {
	Send(ctx context.Context, text string) models.UploadOutcome
}

// Dispatcher runs fn on the foreground context. It must not block the caller
// on the foreground context itself.
type Dispatcher func(fn func())

// Immediate runs fn on the calling goroutine.
func Immediate(fn func()) { fn() }

type Config struct {
	Scanner     scanner.Scanner
	Uploader    Uploader
	View        View
	Permissions permission.Prompter
	Dispatch    Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     *metrics.Collector
}

type Controller struct {
	scanner     scanner.Scanner
	uploader    Uploader
	view        View
	permissions permission.Prompter
	dispatch    Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *metrics.Collector

	mu        sync.Mutex
	granted   bool
	paused    bool
	destroyed bool

	inFlight atomic.Bool
	tasks    sync.WaitGroup
}

// New wires a controller to its scanner's callbacks.
func New(cfg Config) *Controller {
	c := &Controller{
		scanner:     cfg.Scanner,
		uploader:    cfg.Uploader,
		view:        cfg.View,
		permissions: cfg.Permissions,
		dispatch:    cfg.Dispatch,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if c.dispatch == nil {
		c.dispatch = Immediate
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.permissions == nil {
		c.permissions = permission.NewStatic(true)
	}

	c.scanner.SetDecodeCallback(func(r scanner.Result) {
		c.OnDecode(models.NewScanEvent(r.Text, r.Format))
	})
	c.scanner.SetErrorCallback(c.OnDecodeError)
	return c
}

// Activate arms the scanner when camera access is already granted and
// otherwise asks for it.
func (c *Controller) Activate() {
	if c.permissions.Granted() {
		c.setGranted(true)
		c.startPreview()
		return
	}
	c.setGranted(false)
	c.permissions.Request(c.OnPermissionResult)
}

// OnPermissionResult records the operator's answer. A refusal leaves the
// preview inactive and is not asked again.
func (c *Controller) OnPermissionResult(granted bool) {
	c.setGranted(granted)
	if !granted {
		c.logger.Info("scanner left inactive", zap.Error(permission.ErrDenied))
		return
	}
	c.startPreview()
}

// Resume restarts the preview if access was granted.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.paused = false
	granted := c.granted && !c.destroyed
	c.mu.Unlock()

	if granted {
		c.startPreview()
	}
}

// Pause releases every scanner resource. In-flight uploads keep running.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.scanner.ReleaseResources()
}

// Close tears the station down. Uploads still in flight finish, but their
// results no longer reach the view.
func (c *Controller) Close() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	c.scanner.ReleaseResources()
}

// Wait blocks until every upload task has finished.
func (c *Controller) Wait() { c.tasks.Wait() }

// Granted reports the recorded permission state.
func (c *Controller) Granted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted
}

// OnDecode shows the decoded text and starts its upload. Only one upload is
// in flight at a time: codes decoded before the scanner is re-armed are dropped.
func (c *Controller) OnDecode(ev models.ScanEvent) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Warn("upload in flight, dropping scan", zap.String("scan_id", ev.ID))
		c.metrics.Dropped()
		return
	}
	c.metrics.Scanned()
	c.logger.Info("code decoded", zap.String("scan_id", ev.ID), zap.String("format", ev.Format))

	c.ui(func(v View) {
		v.SetHint(ev.Text)
		v.Notify(models.Notification{Kind: models.NotifyScanned, Text: ev.Text})
		v.SetUploading(true)
	})

	c.tasks.Add(1)
	go c.upload(ev)
}

// OnDecodeError shows the pipeline failure. Nothing else changes.
func (c *Controller) OnDecodeError(err error) {
	c.logger.Warn("scanner error", zap.Error(err))
	c.ui(func(v View) {
		v.Notify(models.Notification{
			Kind: models.NotifyScannerError,
			Text: fmt.Sprintf("Scanner error: %v", err),
			Long: true,
		})
	})
}

func (c *Controller) upload(ev models.ScanEvent) {
	defer c.tasks.Done()

	// the uploader bounds the request itself
	outcome := c.uploader.Send(context.Background(), ev.Text)

	c.metrics.Uploaded(outcome)
	fields := []zap.Field{zap.String("scan_id", ev.ID), zap.Stringer("outcome", outcome.Kind)}
	if outcome.StatusCode != 0 {
		fields = append(fields, zap.Int("status", outcome.StatusCode))
	}
	if outcome.Err != nil {
		c.logger.Warn("upload failed", append(fields, zap.Error(outcome.Err))...)
	} else {
		c.logger.Info("upload done", fields...)
	}

	c.ui(func(v View) {
		v.SetUploading(false)
		switch outcome.Kind {
		case models.OutcomeSuccess:
			v.Notify(models.Notification{Kind: models.NotifySent, Text: MsgSent})
			v.SetHint("")
		case models.OutcomeHTTPError:
			v.Notify(models.Notification{Kind: models.NotifyFailed, Text: MsgFailed})
		default:
			v.Notify(models.Notification{Kind: models.NotifyError, Text: MsgError})
		}
	})

	<-c.clock.After(RearmDelay)
	c.inFlight.Store(false)
	c.dispatch(c.rearm)
}

func (c *Controller) rearm() {
	c.mu.Lock()
	skip := c.destroyed || c.paused || !c.granted
	c.mu.Unlock()
	if skip {
		c.logger.Debug("re-arm skipped, screen not active")
		return
	}
	if c.startPreview() {
		c.metrics.Rearmed()
	}
}

func (c *Controller) startPreview() bool {
	if err := c.scanner.StartPreview(); err != nil {
		c.OnDecodeError(err)
		return false
	}
	return true
}

func (c *Controller) setGranted(granted bool) {
	c.mu.Lock()
	c.granted = granted
	c.mu.Unlock()
}

// ui applies fn to the view on the foreground context unless the station
// was closed in the meantime.
func (c *Controller) ui(fn func(View)) {
	c.dispatch(func() {
		c.mu.Lock()
		destroyed := c.destroyed
		c.mu.Unlock()
		if destroyed || c.view == nil {
			return
		}
		fn(c.view)
	})
}
