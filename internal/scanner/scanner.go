// Package scanner defines the contract of the external code scanner and
// adapters for scanners that hand over already decoded text.
//
// Implementations must guarantee:
//   - StartPreview() can be called repeatedly without leaking devices
//   - ReleaseResources() is idempotent and safe without a prior start
//   - the decode callback fires at most once per recognized code, after which
//     nothing is delivered until the next StartPreview (single-scan mode)
package scanner

import (
	"fmt"
	"sync"
)

// Result is a decoded code as reported by the decoder.
type Result struct {
	Text   string
	Format string
}

type DecodeFunc func(Result)
type ErrorFunc func(error)

type Scanner interface {
	StartPreview() error
	ReleaseResources()
	SetDecodeCallback(DecodeFunc)
	SetErrorCallback(ErrorFunc)
}

// DecodeError is a failure of the capture/decode pipeline.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: %v", e.Source, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Gate holds the callbacks of a scanner and the single-scan arm state.
// Adapters embed it and call Arm from StartPreview and Disarm from ReleaseResources.
type Gate struct {
	mu       sync.Mutex
	armed    bool
	onDecode DecodeFunc
	onError  ErrorFunc
}

func (g *Gate) SetDecodeCallback(fn DecodeFunc) {
	g.mu.Lock()
	g.onDecode = fn
	g.mu.Unlock()
}

func (g *Gate) SetErrorCallback(fn ErrorFunc) {
	g.mu.Lock()
	g.onError = fn
	g.mu.Unlock()
}

func (g *Gate) Arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *Gate) Disarm() {
	g.mu.Lock()
	g.armed = false
	g.mu.Unlock()
}

func (g *Gate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Deliver hands r to the decode callback if the gate is armed and disarms it.
// It reports whether r was delivered.
func (g *Gate) Deliver(r Result) bool {
	g.mu.Lock()
	if !g.armed || g.onDecode == nil {
		g.mu.Unlock()
		return false
	}
	g.armed = false
	fn := g.onDecode
	g.mu.Unlock()

	fn(r)
	return true
}

// Fail reports err to the error callback, if any.
func (g *Gate) Fail(err error) {
	g.mu.Lock()
	fn := g.onError
	g.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
