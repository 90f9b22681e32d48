package store

import (
	"fmt"
	"path/filepath"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
)

func (s *Store) pinsPath() string {
	return filepath.Join(s.base, pinsFile)
}

// AddPin appends a pin record to the pin file.
func (s *Store) AddPin(pin models.PinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := readJSONLines[models.PinRecord](s.pinsPath())
	if err != nil {
		return err
	}
	pins = append(pins, pin)
	return writeJSONLines(s, s.pinsPath(), pins)
}

// ListPins returns all pin records in file order. Malformed lines are
// skipped; a missing file is an empty list.
func (s *Store) ListPins() ([]models.PinRecord, error) {
	return readJSONLines[models.PinRecord](s.pinsPath())
}

// RemovePin removes the pin with the given id, preserving the order of the
// remaining records. It returns ErrNotFound when no pin has that id.
func (s *Store) RemovePin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := readJSONLines[models.PinRecord](s.pinsPath())
	if err != nil {
		return err
	}
	kept := pins[:0]
	removed := false
	for _, p := range pins {
		if p.ID == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return fmt.Errorf("store: pin %s: %w", id, apperr.ErrNotFound)
	}
	return writeJSONLines(s, s.pinsPath(), kept)
}
