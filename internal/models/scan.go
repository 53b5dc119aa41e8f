package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanEvent is one successful decode delivered by a scanner.
type ScanEvent struct {
	ID        string
	Text      string
	Format    string
	ScannedAt time.Time
}

// NewScanEvent stamps a decoded text with an id and the current time.
func NewScanEvent(text, format string) ScanEvent {
	return ScanEvent{
		ID:        "scan--" + uuid.NewString(),
		Text:      text,
		Format:    format,
		ScannedAt: time.Now().UTC(),
	}
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeHTTPError
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// UploadOutcome is the result of forwarding one ScanEvent.
// StatusCode is set for Success and HTTPError, Err for HTTPError and TransportError.
type UploadOutcome struct {
	Kind       OutcomeKind
	StatusCode int
	Err        error
}

// ScanRecord is a scan as stored by the receiving endpoint.
type ScanRecord struct {
	ID         string    `json:"id"`
	Data       string    `json:"data"`
	RemoteAddr string    `json:"remote_addr"`
	ReceivedAt time.Time `json:"received_at"`
}
