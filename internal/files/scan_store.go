package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrylevesque/scanrelay/internal/models"
)

// ScanStore keeps received scans in a single JSON file.
type ScanStore struct {
	filePath string
	mu       sync.RWMutex
	records  []models.ScanRecord
}

// NewScanStore opens the store at path, loading any records already there.
func NewScanStore(path string) (*ScanStore, error) {
	s := &ScanStore{filePath: path}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load scan store: %w", err)
	}
	return s, nil
}

// Save stamps data with an id and a receive time and appends it.
func (s *ScanStore) Save(data, remoteAddr string) (models.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.ScanRecord{
		ID:         "rcv--" + uuid.NewString(),
		Data:       data,
		RemoteAddr: remoteAddr,
		ReceivedAt: time.Now().UTC(),
	}
	records := append(s.records, rec)
	if err := s.write(records); err != nil {
		return models.ScanRecord{}, err
	}
	s.records = records
	return rec, nil
}

// GetAll returns the stored records, oldest first.
func (s *ScanStore) GetAll() []models.ScanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ScanRecord(nil), s.records...)
}

// Clear removes all records.
func (s *ScanStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.records = nil
	return nil
}

func (s *ScanStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, that's fine
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.records)
}

// write replaces the file through a rename so a crash never leaves it half written.
func (s *ScanStore) write(records []models.ScanRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}
