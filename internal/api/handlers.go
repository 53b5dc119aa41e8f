package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/files"
	"github.com/harrylevesque/scanrelay/internal/metrics"
	"github.com/harrylevesque/scanrelay/internal/upload"
)

// Handlers serve the receiving side of the scan upload.
type Handlers struct {
	store   *files.ScanStore
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewHandlers(store *files.ScanStore, logger *zap.Logger, m *metrics.Collector) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, logger: logger, metrics: m}
}

// HandleScan stores the form field scanResult and answers 200 "OK".
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	values, ok := r.PostForm[upload.FormField]
	if !ok || len(values) == 0 {
		http.Error(w, "missing "+upload.FormField, http.StatusBadRequest)
		return
	}

	rec, err := h.store.Save(values[0], r.RemoteAddr)
	if err != nil {
		h.logger.Error("failed to store scan", zap.Error(err))
		http.Error(w, "failed to store scan", http.StatusInternalServerError)
		return
	}
	h.metrics.Received()
	h.logger.Info("scan received", zap.String("scan_id", rec.ID), zap.String("remote", rec.RemoteAddr))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListScans returns every stored scan as JSON.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.store.GetAll())
}

// ClearScans empties the store.
func (h *Handlers) ClearScans(w http.ResponseWriter, r *http.Request) {
	n := len(h.store.GetAll())
	if err := h.store.Clear(); err != nil {
		h.logger.Error("failed to clear scans", zap.Error(err))
		http.Error(w, "failed to clear scans", http.StatusInternalServerError)
		return
	}
	h.logger.Info("scans cleared", zap.Int("count", n))
	w.WriteHeader(http.StatusNoContent)
}
