package gridstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridloom/gridloom/internal/enrich"
	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/recalc"
)

// Persister is the external persistence collaborator. The store calls it
// after mutations and tolerates failure: memory stays authoritative, errors
// surface through the notifier, nothing is rolled back.
type Persister interface {
	// SaveAll persists the full vertical list (debounced hand-off).
	SaveAll(ctx context.Context, verticals []*grid.Vertical) error

	// SaveSheet persists one sheet create/replace.
	SaveSheet(ctx context.Context, verticalID string, sheet *grid.Sheet) error

	// DeleteSheet persists one sheet delete.
	DeleteSheet(ctx context.Context, verticalID, sheetID string) error

	// SaveRow persists one row create/replace.
	SaveRow(ctx context.Context, verticalID, sheetID string, row grid.Row) error

	// DeleteRow persists one row delete.
	DeleteRow(ctx context.Context, verticalID, sheetID, rowID string) error
}

// EnrichmentTrigger is the reactive hook into the job runner. Wired after
// construction because the runner needs the store as its GridWriter.
type EnrichmentTrigger interface {
	AutoTrigger(ctx context.Context, verticalID, sheetID string, t enrich.Trigger)
	DeployAgent(ctx context.Context, verticalID, sheetID, agentID string, rowIDs []string)
}

// Notifier surfaces transient, user-visible messages (persistence failures,
// rejected mutations explained).
type Notifier func(message string)

// DefaultPersistDelay is the quiet period for the persistence debounce.
const DefaultPersistDelay = 800 * time.Millisecond

// Store holds the in-memory vertical/sheet graph.
type Store struct {
	mu        sync.Mutex
	verticals []*grid.Vertical

	engine    *recalc.Engine
	ids       grid.IDGenerator
	persister Persister
	persist   *debouncer
	notify    Notifier
	trigger   EnrichmentTrigger
	logger    *slog.Logger

	// bulkMode suppresses the persistence debounce during imports and
	// scripted batches; one save fires when it is switched off.
	bulkMode bool
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the id generator (tests use FixedGenerator).
func WithIDGenerator(ids grid.IDGenerator) Option {
	return func(s *Store) { s.ids = ids }
}

// WithPersistDelay overrides the debounce quiet period.
func WithPersistDelay(d time.Duration) Option {
	return func(s *Store) { s.persist = newDebouncer(d, s.persistNow) }
}

// WithNotifier sets the user-facing message sink.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

// New creates a store. persister may be nil (no persistence hand-off, used
// in tests and the scenario harness).
func New(persister Persister, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		engine:    recalc.New(logger),
		ids:       grid.UUIDv7Generator{},
		persister: persister,
		logger:    logger,
	}
	s.notify = func(message string) { s.logger.Info("notify", "message", message) }
	s.persist = newDebouncer(DefaultPersistDelay, s.persistNow)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEnrichmentTrigger wires the reactive enrichment hook.
func (s *Store) SetEnrichmentTrigger(t EnrichmentTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = t
}

// SetBulkMode toggles bulk-import mode. Entering it suppresses debounced
// persistence; leaving it flushes one save for the whole batch.
func (s *Store) SetBulkMode(on bool) {
	s.mu.Lock()
	wasOn := s.bulkMode
	s.bulkMode = on
	s.mu.Unlock()

	if on {
		s.persist.cancel()
	} else if wasOn {
		s.persist.flush()
	}
}

// Verticals returns a deep copy of the current state.
func (s *Store) Verticals() []*grid.Vertical {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneVerticals(s.verticals)
}

// SheetSnapshot returns a read-only clone of one sheet plus all sheets of
// its vertical. Implements enrich.GridWriter.
func (s *Store) SheetSnapshot(verticalID, sheetID string) (*grid.Sheet, []*grid.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, sheet, err := s.findLocked(verticalID, sheetID)
	if err != nil {
		return nil, nil, err
	}
	all := make([]*grid.Sheet, len(v.Sheets))
	for i, sh := range v.Sheets {
		all[i] = sh.Clone()
	}
	clone, _ := (&grid.Vertical{Sheets: all}).Sheet(sheet.ID)
	return clone, all, nil
}

// UpdateSheet is the single mutation choke point: apply fn to the sheet,
// recalculate it, fan out to dependents, and schedule persistence.
//
// changedColumnIDs narrows dependent fan-out to sheets linking those
// columns; nil means "treat every column as changed" (structural edits).
// fn is applied to a clone that is swapped in only on success, so fn
// returning an error rejects the mutation with no state change even when
// fn already mutated its argument.
func (s *Store) UpdateSheet(verticalID, sheetID string, changedColumnIDs []string, fn func(*grid.Sheet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSheetLocked(verticalID, sheetID, changedColumnIDs, fn)
}

func (s *Store) updateSheetLocked(verticalID, sheetID string, changedColumnIDs []string, fn func(*grid.Sheet) error) error {
	v, sheet, err := s.findLocked(verticalID, sheetID)
	if err != nil {
		return err
	}
	draft := sheet.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	for i, sh := range v.Sheets {
		if sh.ID == sheetID {
			v.Sheets[i] = draft
			break
		}
	}
	s.recalcLocked(v, sheetID, changedColumnIDs)
	s.schedulePersistLocked()
	return nil
}

// recalcLocked recalculates the edited sheet inline, then each dependent
// sheet exactly once against the updated source data.
func (s *Store) recalcLocked(v *grid.Vertical, sheetID string, changedColumnIDs []string) {
	replace := func(updated *grid.Sheet) {
		for i, sh := range v.Sheets {
			if sh.ID == updated.ID {
				v.Sheets[i] = updated
				return
			}
		}
	}

	sheet, ok := v.Sheet(sheetID)
	if !ok {
		return
	}
	replace(s.engine.Recalculate(sheet, v.Sheets))

	var dependents []string
	if changedColumnIDs == nil {
		dependents = recalc.FindSheetDependents(sheetID, v.Sheets)
	} else {
		seen := make(map[string]bool)
		for _, colID := range changedColumnIDs {
			for _, id := range recalc.FindDependents(sheetID, colID, v.Sheets) {
				if !seen[id] {
					seen[id] = true
					dependents = append(dependents, id)
				}
			}
		}
	}

	for _, depID := range dependents {
		if dep, ok := v.Sheet(depID); ok {
			replace(s.engine.Recalculate(dep, v.Sheets))
		}
	}
}

func (s *Store) findLocked(verticalID, sheetID string) (*grid.Vertical, *grid.Sheet, error) {
	v := s.verticalLocked(verticalID)
	if v == nil {
		return nil, nil, &grid.StructureError{
			Code: grid.ErrCodeVerticalNotFound, Message: "unknown vertical", VerticalID: verticalID,
		}
	}
	sheet, ok := v.Sheet(sheetID)
	if !ok {
		return nil, nil, &grid.StructureError{
			Code: grid.ErrCodeSheetNotFound, Message: "unknown sheet", VerticalID: verticalID, SheetID: sheetID,
		}
	}
	return v, sheet, nil
}

func (s *Store) verticalLocked(id string) *grid.Vertical {
	for _, v := range s.verticals {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// schedulePersistLocked arms the debounce unless bulk mode is on.
func (s *Store) schedulePersistLocked() {
	if s.persister == nil || s.bulkMode {
		return
	}
	s.persist.trigger()
}

// persistNow saves the full vertical list. Failure is surfaced, never
// rolled back.
func (s *Store) persistNow() {
	if s.persister == nil {
		return
	}
	snapshot := s.Verticals()
	if err := s.persister.SaveAll(context.Background(), snapshot); err != nil {
		s.logger.Warn("persistence failed", "error", err)
		s.notify(fmt.Sprintf("saving changes failed: %v", err))
	}
}

// persistSideEffect runs a targeted persist call (row/sheet create or
// delete) outside the debounce, with the same failure policy.
func (s *Store) persistSideEffect(op func(Persister) error) {
	if s.persister == nil {
		return
	}
	if err := op(s.persister); err != nil {
		s.logger.Warn("persistence failed", "error", err)
		s.notify(fmt.Sprintf("saving changes failed: %v", err))
	}
}

// fireTrigger dispatches the reactive enrichment check after the write has
// settled into state. Must be called outside the store lock.
func (s *Store) fireTrigger(verticalID, sheetID string, t enrich.Trigger) {
	s.mu.Lock()
	trigger := s.trigger
	s.mu.Unlock()
	if trigger == nil {
		return
	}
	go trigger.AutoTrigger(context.Background(), verticalID, sheetID, t)
}

func cloneVerticals(in []*grid.Vertical) []*grid.Vertical {
	out := make([]*grid.Vertical, len(in))
	for i, v := range in {
		clone := &grid.Vertical{ID: v.ID, Name: v.Name, Color: v.Color}
		clone.Sheets = make([]*grid.Sheet, len(v.Sheets))
		for j, sh := range v.Sheets {
			clone.Sheets[j] = sh.Clone()
		}
		out[i] = clone
	}
	return out
}
