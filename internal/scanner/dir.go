package scanner

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"go.uber.org/zap"
)

var errNoCode = errors.New("no code in frame")

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// DirScanner watches a directory that a capture tool (fswebcam, ffmpeg,
// a phone sync folder) writes camera frames into and decodes QR codes from them.
type DirScanner struct {
	Gate

	dir    string
	logger *zap.Logger
	decode func(path string) (Result, error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewDirScanner(dir string, logger *zap.Logger) *DirScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirScanner{dir: dir, logger: logger, decode: DecodeFrame}
}

func (s *DirScanner) StartPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch %s: %w", s.dir, err)
		}
		if err := w.Add(s.dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %s: %w", s.dir, err)
		}
		s.watcher = w
		s.done = make(chan struct{})
		go s.loop(w, s.done)
	}
	s.Arm()
	return nil
}

func (s *DirScanner) ReleaseResources() {
	s.Disarm()

	s.mu.Lock()
	w, done := s.watcher, s.done
	s.watcher, s.done = nil, nil
	s.mu.Unlock()

	if w == nil {
		return
	}
	close(done)
	_ = w.Close()
}

func (s *DirScanner) loop(w *fsnotify.Watcher, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !frameExts[strings.ToLower(filepath.Ext(ev.Name))] || !s.Armed() {
				continue
			}
			r, err := s.decode(ev.Name)
			if err != nil {
				// frames without a code and half-written files are normal
				s.logger.Debug("frame skipped", zap.String("frame", ev.Name), zap.Error(err))
				continue
			}
			s.Deliver(r)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.Fail(&DecodeError{Source: s.dir, Err: err})
		}
	}
}

// DecodeFrame decodes the first QR code found in the image at path.
func DecodeFrame(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	return DecodeImage(img)
}

// DecodeImage runs the QR reader over img.
func DecodeImage(img image.Image) (Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, fmt.Errorf("binarize: %w", err)
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errNoCode, err)
	}
	return Result{Text: res.GetText(), Format: "QR_CODE"}, nil
}
