package client

import (
	"context"
	"strings"
	"sync"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

// LifecycleController holds the cached formula list for one design task and
// orchestrates transitions against the service. The cache is a display
// convenience only: each transition patches it optimistically, then a fresh
// list is always fetched once the request settles, success or failure. The
// authoritative copy lives on the service; this one is invalidated, never
// trusted, after any transition attempt.
type LifecycleController struct {
	log             *logger.Logger
	api             *FormulaAPI
	designTaskIndex string

	mu       sync.Mutex
	formulas []*types.FormulaRecord
	stale    bool
}

func NewLifecycleController(api *FormulaAPI, designTaskIndex string, baseLog *logger.Logger) *LifecycleController {
	return &LifecycleController{
		log:             baseLog.With("controller", "LifecycleController", "design_task_index", designTaskIndex),
		api:             api,
		designTaskIndex: designTaskIndex,
	}
}

// Refresh replaces the cache with the authoritative list.
func (lc *LifecycleController) Refresh(ctx context.Context) error {
	records, err := lc.api.List(ctx, lc.designTaskIndex)
	if err != nil {
		lc.mu.Lock()
		lc.stale = true
		lc.mu.Unlock()
		return err
	}
	lc.mu.Lock()
	lc.formulas = records
	lc.stale = false
	lc.mu.Unlock()
	return nil
}

// Formulas returns a deep-copied snapshot; callers can edit it freely without
// aliasing the cache.
func (lc *LifecycleController) Formulas() []*types.FormulaRecord {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]*types.FormulaRecord, len(lc.formulas))
	for i, f := range lc.formulas {
		out[i] = f.Clone()
	}
	return out
}

// Stale reports whether the cache missed its last reconciliation.
func (lc *LifecycleController) Stale() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.stale
}

// Create submits a new formula and, on success, prepends the persisted record
// to the cache (newest first, by insertion convention).
func (lc *LifecycleController) Create(ctx context.Context, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	created, err := lc.api.Create(ctx, lc.designTaskIndex, record)
	if err != nil {
		return nil, err
	}
	lc.mu.Lock()
	next := make([]*types.FormulaRecord, 0, len(lc.formulas)+1)
	next = append(next, created.Clone())
	next = append(next, lc.formulas...)
	lc.formulas = next
	lc.mu.Unlock()
	return created, nil
}

// Update overwrites a formula's mutable fields and swaps the persisted result
// into the cache in place.
func (lc *LifecycleController) Update(ctx context.Context, index string, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	updated, err := lc.api.Update(ctx, index, record)
	if err != nil {
		return nil, err
	}
	lc.mu.Lock()
	next := make([]*types.FormulaRecord, len(lc.formulas))
	copy(next, lc.formulas)
	for i, f := range next {
		if f.Index == index {
			next[i] = updated.Clone()
			break
		}
	}
	lc.formulas = next
	lc.mu.Unlock()
	return updated, nil
}

// Delete removes a formula. The cache position is noted before the call and
// the removal splices that exact position, not a position re-derived from the
// index afterwards.
func (lc *LifecycleController) Delete(ctx context.Context, index string) error {
	lc.mu.Lock()
	pos := -1
	for i, f := range lc.formulas {
		if f.Index == index {
			pos = i
			break
		}
	}
	lc.mu.Unlock()

	if err := lc.api.Delete(ctx, index); err != nil {
		return err
	}

	lc.mu.Lock()
	if pos >= 0 && pos < len(lc.formulas) {
		next := make([]*types.FormulaRecord, 0, len(lc.formulas)-1)
		next = append(next, lc.formulas[:pos]...)
		next = append(next, lc.formulas[pos+1:]...)
		lc.formulas = next
	}
	lc.mu.Unlock()
	return nil
}

func (lc *LifecycleController) MarkPending(ctx context.Context, index string) error {
	return lc.transition(ctx, index, types.StatusPending, func(ctx context.Context) error {
		_, err := lc.api.MarkPending(ctx, index)
		return err
	})
}

func (lc *LifecycleController) MarkQualified(ctx context.Context, index string) error {
	return lc.transition(ctx, index, types.StatusQualified, func(ctx context.Context) error {
		_, err := lc.api.MarkQualified(ctx, index)
		return err
	})
}

func (lc *LifecycleController) MarkUnqualified(ctx context.Context, index, reason string) error {
	// The empty-reason check happens in the repository layer before any
	// network call; skip the optimistic patch for it as well.
	if err := validateReason(reason); err != nil {
		return err
	}
	return lc.transition(ctx, index, types.StatusUnqualified, func(ctx context.Context) error {
		_, err := lc.api.MarkUnqualified(ctx, index, reason)
		return err
	})
}

func (lc *LifecycleController) MarkProduction(ctx context.Context, index string) error {
	return lc.transition(ctx, index, types.StatusProduction, func(ctx context.Context) error {
		_, err := lc.api.MarkProduction(ctx, index)
		return err
	})
}

// transition applies the optimistic patch, runs the request, then reconciles
// with a fresh list regardless of outcome. A failed reconcile marks the cache
// stale so the optimistic value is never mistaken for committed state.
func (lc *LifecycleController) transition(ctx context.Context, index string, target types.QualifiedStatus, call func(ctx context.Context) error) error {
	lc.applyOptimisticStatus(index, target)

	transitionErr := call(ctx)
	if transitionErr != nil && IsTransport(transitionErr) {
		// The request may or may not have reached the service; nothing to
		// reconcile against until the caller refreshes manually.
		lc.mu.Lock()
		lc.stale = true
		lc.mu.Unlock()
		lc.log.Warn("Transition transport failure, cache unreconciled", "index", index, "target", target.String(), "error", transitionErr)
		return transitionErr
	}

	if err := lc.Refresh(ctx); err != nil {
		lc.log.Warn("Post-transition refresh failed, cache marked stale", "index", index, "error", err)
	}
	if transitionErr != nil {
		lc.log.Warn("Transition rejected", "index", index, "target", target.String(), "code", bizcode.CodeOf(transitionErr), "explanation", Explain(transitionErr))
	}
	return transitionErr
}

func (lc *LifecycleController) applyOptimisticStatus(index string, target types.QualifiedStatus) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	next := make([]*types.FormulaRecord, len(lc.formulas))
	copy(next, lc.formulas)
	for i, f := range next {
		if f.Index == index {
			patched := f.Clone()
			status := target
			patched.Status = &status
			next[i] = patched
			break
		}
	}
	lc.formulas = next
}

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return bizcode.Newf(bizcode.MissingParameter, "unqualified reason is required")
	}
	return nil
}

// Explain maps any lifecycle error to the human-readable explanation for its
// code. Generic service errors surface their message verbatim.
func Explain(err error) string {
	if err == nil {
		return ""
	}
	code := bizcode.CodeOf(err)
	if code == bizcode.ServiceError {
		return err.Error()
	}
	return bizcode.Message(code)
}
