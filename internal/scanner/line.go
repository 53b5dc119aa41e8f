package scanner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// OpenFunc opens the device a LineScanner reads from.
type OpenFunc func() (io.ReadCloser, error)

// DeviceOpener opens path, typically a serial tty or a FIFO fed by a decoder.
func DeviceOpener(path string) OpenFunc {
	return func() (io.ReadCloser, error) { return os.Open(path) }
}

// LineScanner reads one decoded code per line from a hardware scanner in
// serial mode. Lines arriving while the preview is stopped are discarded.
type LineScanner struct {
	Gate

	name       string
	open       OpenFunc
	persistent bool
	logger     *zap.Logger

	mu      sync.Mutex
	rc      io.ReadCloser
	reading bool
}

// NewLineScanner returns a scanner that opens its device on StartPreview and
// closes it on ReleaseResources.
func NewLineScanner(name string, open OpenFunc, logger *zap.Logger) *LineScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineScanner{name: name, open: open, logger: logger}
}

// NewStreamScanner reads from r for the life of the process. Used for
// stdin, which cannot be reopened, so release only stops delivery.
func NewStreamScanner(name string, r io.Reader, logger *zap.Logger) *LineScanner {
	s := NewLineScanner(name, func() (io.ReadCloser, error) { return io.NopCloser(r), nil }, logger)
	s.persistent = true
	return s
}

func (s *LineScanner) StartPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reading {
		s.Arm()
		return nil
	}
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open scanner %s: %w", s.name, err)
	}
	s.rc = rc
	s.reading = true
	s.Arm()
	go s.read(rc)
	return nil
}

func (s *LineScanner) ReleaseResources() {
	s.Disarm()
	if s.persistent {
		return
	}

	s.mu.Lock()
	rc := s.rc
	s.rc = nil
	s.reading = false
	s.mu.Unlock()

	if rc != nil {
		_ = rc.Close()
	}
}

func (s *LineScanner) read(rc io.ReadCloser) {
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !s.Deliver(Result{Text: text, Format: "line"}) {
			s.logger.Debug("discarding code while preview is stopped", zap.String("scanner", s.name))
		}
	}

	s.mu.Lock()
	released := s.rc != rc
	if !released {
		s.rc = nil
		s.reading = false
	}
	s.mu.Unlock()
	if released {
		return
	}
	_ = rc.Close()

	err := sc.Err()
	if err == nil {
		// a stream ending is normal, a device ending means it went away
		if s.persistent {
			return
		}
		err = io.ErrUnexpectedEOF
	}
	s.Fail(&DecodeError{Source: s.name, Err: err})
}

func (s *LineScanner) isReading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}
