package enrich

import "sync"

// InFlightSet tracks cells with enrichment in progress, keyed
// "rowID:columnID". The surrounding UI reads it to render spinners.
//
// Thread-safe: tasks in a batch add and remove their own key concurrently.
type InFlightSet struct {
	mu    sync.Mutex
	cells map[string]bool
}

// NewInFlightSet creates an empty in-flight set.
func NewInFlightSet() *InFlightSet {
	return &InFlightSet{cells: make(map[string]bool)}
}

// CellKey builds the canonical in-flight key for a cell.
func CellKey(rowID, columnID string) string {
	return rowID + ":" + columnID
}

// Add marks a cell as processing.
func (s *InFlightSet) Add(rowID, columnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[CellKey(rowID, columnID)] = true
}

// Remove clears a cell's processing mark.
func (s *InFlightSet) Remove(rowID, columnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, CellKey(rowID, columnID))
}

// Has reports whether a cell is currently processing.
func (s *InFlightSet) Has(rowID, columnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells[CellKey(rowID, columnID)]
}

// Len returns the number of in-flight cells.
func (s *InFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells)
}

// Clear removes every mark. Used by the global stop action so spinners
// disappear immediately regardless of what individual rows were doing.
func (s *InFlightSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = make(map[string]bool)
}
