package enrich

import (
	"context"
	"sync"
)

// batchGuard tracks active batches so auto-triggered runs cannot re-enter a
// sheet that already has a batch in flight, and so a global stop can cancel
// everything at once.
//
// Check-and-set happens under one lock within the same synchronous step, so
// there is no window where two auto-triggers both observe "idle".
type batchGuard struct {
	mu     sync.Mutex
	active map[string]activeBatch // keyed by batch token
}

type activeBatch struct {
	sheetID string
	cancel  context.CancelFunc
}

func newBatchGuard() *batchGuard {
	return &batchGuard{active: make(map[string]activeBatch)}
}

// begin registers a batch and returns its token.
func (g *batchGuard) begin(token, sheetID string, cancel context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[token] = activeBatch{sheetID: sheetID, cancel: cancel}
}

// beginIfIdle registers a batch only when the sheet has no batch in
// flight. Check and registration happen under one lock, so two racing
// reactive triggers can never both pass.
func (g *batchGuard) beginIfIdle(token, sheetID string, cancel context.CancelFunc) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.active {
		if b.sheetID == sheetID {
			return false
		}
	}
	g.active[token] = activeBatch{sheetID: sheetID, cancel: cancel}
	return true
}

// end unregisters a batch.
func (g *batchGuard) end(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, token)
}

// cancelAll cancels every active batch's context.
func (g *batchGuard) cancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.active {
		b.cancel()
	}
}
