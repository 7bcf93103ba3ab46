// Package bridge tracks cross-chain transfers in flight. At most one bridge
// is active at a time; completed bridges accumulate in an append-only
// history.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
)

// Outcome is the terminal state of a finished bridge.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Progress is the snapshot shown while a bridge is running. Step never
// decreases within one bridge.
type Progress struct {
	ID          string
	SourceChain chains.ChainID
	TargetChain chains.ChainID
	Step        int
	TotalSteps  int
	Message     string
	StartedAt   time.Time
}

// Result is one finished bridge. History entries are never mutated after
// insertion.
type Result struct {
	ID          string
	SourceChain chains.ChainID
	TargetChain chains.ChainID
	Amount      string
	Token       string
	Outcome     Outcome
	Receipt     *clients.TxReceipt
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// InProgressError rejects a new transfer while a bridge is still running.
// Same-chain sends are unaffected; only one bridge may be in flight.
type InProgressError struct {
	ActiveID string
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("a bridge transfer is already in progress (id %s)", e.ActiveID)
}

// Tracker serializes bridge transfers and records their history.
type Tracker struct {
	logger *zap.Logger

	mu      sync.Mutex
	active  *Progress
	history []Result
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		logger: logger.With(zap.String("component", "BridgeTracker")),
		now:    time.Now,
	}
}

// Begin claims the single active-bridge slot for a transfer and returns its
// tracking id. It fails with InProgressError while another bridge runs.
func (t *Tracker) Begin(transfer clients.BridgeTransfer) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return "", &InProgressError{ActiveID: t.active.ID}
	}

	id := uuid.NewString()
	t.active = &Progress{
		ID:          id,
		SourceChain: transfer.SourceChain,
		TargetChain: transfer.TargetChain,
		StartedAt:   t.now(),
	}

	t.logger.Info("Bridge started",
		zap.String("bridgeId", id),
		zap.Uint64("sourceChain", uint64(transfer.SourceChain)),
		zap.Uint64("targetChain", uint64(transfer.TargetChain)))
	return id, nil
}

// Advance records a non-terminal progress update. Regressing steps from a
// lagging poll are ignored.
func (t *Tracker) Advance(id string, update clients.ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.ID != id {
		return
	}
	if update.Step < t.active.Step {
		return
	}
	t.active.Step = update.Step
	t.active.TotalSteps = update.TotalSteps
	t.active.Message = update.Message
}

// Finish releases the active slot and appends the terminal result to the
// history.
func (t *Tracker) Finish(id string, transfer clients.BridgeTransfer, update clients.ProgressUpdate) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := Result{
		ID:          id,
		SourceChain: transfer.SourceChain,
		TargetChain: transfer.TargetChain,
		Amount:      transfer.Amount.String(),
		Token:       transfer.Token,
		Receipt:     update.Receipt,
		Err:         update.Err,
		FinishedAt:  t.now(),
	}
	if update.Err != nil {
		result.Outcome = OutcomeFailed
	} else {
		result.Outcome = OutcomeCompleted
	}

	if t.active != nil && t.active.ID == id {
		result.StartedAt = t.active.StartedAt
		t.active = nil
	}
	t.history = append(t.history, result)

	t.logger.Info("Bridge finished",
		zap.String("bridgeId", id),
		zap.String("outcome", string(result.Outcome)))
	return result
}

// Abort releases the active slot without recording a history entry. It is
// for transfers the relayer rejected before anything left the wallet; the
// history only lists bridges that were actually dispatched.
func (t *Tracker) Abort(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.ID != id {
		return
	}
	t.active = nil
	t.logger.Info("Bridge aborted before dispatch", zap.String("bridgeId", id))
}

// Active returns a copy of the running bridge's progress, if any.
func (t *Tracker) Active() (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return Progress{}, false
	}
	return *t.active, true
}

// History returns copies of all finished bridges, oldest first.
func (t *Tracker) History() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Result, len(t.history))
	copy(out, t.history)
	return out
}
