package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

// FormulaService owns the formula lifecycle: CRUD scoped to a design task and
// the four status transitions. The qualified/production exclusivity rules are
// task-wide, so every transition runs under a per-task lock plus a database
// transaction; of two conflicting in-flight transitions exactly one commits.
type FormulaService interface {
	List(ctx context.Context, tx *gorm.DB, designTaskIndex string) ([]*types.FormulaRecord, error)
	Create(ctx context.Context, tx *gorm.DB, designTaskIndex string, record *types.FormulaRecord) (*types.FormulaRecord, error)
	Update(ctx context.Context, tx *gorm.DB, index string, record *types.FormulaRecord) (*types.FormulaRecord, error)
	Delete(ctx context.Context, tx *gorm.DB, index string) error

	MarkPending(ctx context.Context, index string) (*types.FormulaRecord, error)
	MarkQualified(ctx context.Context, index string) (*types.FormulaRecord, error)
	MarkUnqualified(ctx context.Context, index, reason string) (*types.FormulaRecord, error)
	MarkProduction(ctx context.Context, index string) (*types.FormulaRecord, error)
}

type formulaService struct {
	db             *gorm.DB
	log            *logger.Logger
	formulaRepo    repos.FormulaRepo
	designTaskRepo repos.DesignTaskRepo

	// taskLocks serializes writers per design task so the sibling checks
	// below stay race-free on any gorm dialect.
	taskLocks sync.Map
}

func NewFormulaService(
	db *gorm.DB,
	baseLog *logger.Logger,
	formulaRepo repos.FormulaRepo,
	designTaskRepo repos.DesignTaskRepo,
) FormulaService {
	serviceLog := baseLog.With("service", "FormulaService")
	return &formulaService{
		db:             db,
		log:            serviceLog,
		formulaRepo:    formulaRepo,
		designTaskRepo: designTaskRepo,
	}
}

func (fs *formulaService) lockTask(designTaskIndex string) func() {
	v, _ := fs.taskLocks.LoadOrStore(designTaskIndex, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (fs *formulaService) List(ctx context.Context, tx *gorm.DB, designTaskIndex string) ([]*types.FormulaRecord, error) {
	if strings.TrimSpace(designTaskIndex) == "" {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	exists, err := fs.designTaskRepo.Exists(ctx, tx, designTaskIndex)
	if err != nil {
		return nil, fmt.Errorf("check design task: %w", err)
	}
	if !exists {
		return nil, bizcode.Newf(bizcode.RecordNotFound, "design task %s not found", designTaskIndex)
	}
	records, err := fs.formulaRepo.ListByTask(ctx, tx, designTaskIndex)
	if err != nil {
		return nil, fmt.Errorf("list formulas: %w", err)
	}
	return records, nil
}

func (fs *formulaService) Create(ctx context.Context, tx *gorm.DB, designTaskIndex string, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	if strings.TrimSpace(designTaskIndex) == "" || record == nil || strings.TrimSpace(record.Index) == "" {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	exists, err := fs.designTaskRepo.Exists(ctx, tx, designTaskIndex)
	if err != nil {
		return nil, fmt.Errorf("check design task: %w", err)
	}
	if !exists {
		return nil, bizcode.Newf(bizcode.RecordNotFound, "design task %s not found", designTaskIndex)
	}

	unlock := fs.lockTask(designTaskIndex)
	defer unlock()

	created := &types.FormulaRecord{
		Index:           record.Index,
		DesignTaskIndex: designTaskIndex,
	}
	created.ApplyMutableFields(record)
	status := types.StatusPending
	created.Status = &status

	err = fs.runInTx(tx, func(innerTx *gorm.DB) error {
		count, err := fs.formulaRepo.CountByTask(ctx, innerTx, designTaskIndex)
		if err != nil {
			return fmt.Errorf("count formulas: %w", err)
		}
		version := fmt.Sprintf("V%d", count+1)
		created.Version = &version
		if _, err := fs.formulaRepo.Create(ctx, innerTx, created); err != nil {
			return fmt.Errorf("create formula: %w", err)
		}
		return nil
	})
	if err != nil {
		fs.log.Error("Create formula failed", "error", err, "design_task_index", designTaskIndex)
		return nil, err
	}
	fs.log.Info("Formula created", "index", created.Index, "design_task_index", designTaskIndex, "version", *created.Version)
	return created, nil
}

func (fs *formulaService) Update(ctx context.Context, tx *gorm.DB, index string, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	if strings.TrimSpace(index) == "" || record == nil {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	probe, err := fs.formulaRepo.GetByIndex(ctx, tx, index)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizcode.Newf(bizcode.RecordNotFound, "formula %s not found", index)
		}
		return nil, fmt.Errorf("load formula: %w", err)
	}

	// The read-modify-save runs under the task lock so it cannot interleave
	// with a status transition on the same task.
	unlock := fs.lockTask(probe.DesignTaskIndex)
	defer unlock()

	existing, err := fs.formulaRepo.GetByIndex(ctx, tx, index)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizcode.Newf(bizcode.RecordNotFound, "formula %s not found", index)
		}
		return nil, fmt.Errorf("load formula: %w", err)
	}

	// Full overwrite of the mutable fields. Index, version, status and the
	// AI analysis reason are immutable through this path.
	existing.ApplyMutableFields(record)
	updated, err := fs.formulaRepo.Save(ctx, tx, existing)
	if err != nil {
		fs.log.Error("Update formula failed", "error", err, "index", index)
		return nil, fmt.Errorf("save formula: %w", err)
	}
	return updated, nil
}

func (fs *formulaService) Delete(ctx context.Context, tx *gorm.DB, index string) error {
	if strings.TrimSpace(index) == "" {
		return bizcode.New(bizcode.MissingParameter)
	}
	rows, err := fs.formulaRepo.Delete(ctx, tx, index)
	if err != nil {
		fs.log.Error("Delete formula failed", "error", err, "index", index)
		return fmt.Errorf("delete formula: %w", err)
	}
	if rows == 0 {
		return bizcode.Newf(bizcode.RecordNotFound, "formula %s not found", index)
	}
	fs.log.Info("Formula deleted", "index", index)
	return nil
}

func (fs *formulaService) MarkPending(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return fs.transition(ctx, index, types.StatusPending, nil)
}

func (fs *formulaService) MarkQualified(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return fs.transition(ctx, index, types.StatusQualified, nil)
}

func (fs *formulaService) MarkUnqualified(ctx context.Context, index, reason string) (*types.FormulaRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, bizcode.Newf(bizcode.MissingParameter, "unqualified reason is required")
	}
	return fs.transition(ctx, index, types.StatusUnqualified, &reason)
}

func (fs *formulaService) MarkProduction(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return fs.transition(ctx, index, types.StatusProduction, nil)
}

// transition moves one record to target under the task lock. Either the
// status changes and the updated record is returned, or nothing changes and a
// bizcode error reports why. Production being reachable only from qualified
// is a convention of the calling UI and deliberately not re-checked here.
func (fs *formulaService) transition(ctx context.Context, index string, target types.QualifiedStatus, reason *string) (*types.FormulaRecord, error) {
	if strings.TrimSpace(index) == "" {
		return nil, bizcode.New(bizcode.MissingParameter)
	}

	// First read resolves the owning task so the right lock is taken; the
	// record is re-read inside the transaction.
	probe, err := fs.formulaRepo.GetByIndex(ctx, nil, index)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizcode.Newf(bizcode.RecordNotFound, "formula %s not found", index)
		}
		return nil, fmt.Errorf("load formula: %w", err)
	}

	unlock := fs.lockTask(probe.DesignTaskIndex)
	defer unlock()

	var updated *types.FormulaRecord
	err = fs.db.Transaction(func(innerTx *gorm.DB) error {
		record, err := fs.formulaRepo.GetByIndex(ctx, innerTx, index)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizcode.Newf(bizcode.RecordNotFound, "formula %s not found", index)
			}
			return fmt.Errorf("load formula: %w", err)
		}
		if record.StatusOrPending() == target {
			return bizcode.Newf(bizcode.AlreadyInState, "formula %s is already %s", index, target)
		}
		if target.Exclusive() {
			siblings, err := fs.formulaRepo.CountSiblingsWithStatus(ctx, innerTx, record.DesignTaskIndex, index, target)
			if err != nil {
				return fmt.Errorf("count siblings: %w", err)
			}
			if siblings > 0 {
				return bizcode.Newf(bizcode.ExclusivityViolation, "another formula in task %s is already %s", record.DesignTaskIndex, target)
			}
		}
		if err := fs.formulaRepo.UpdateStatus(ctx, innerTx, index, target, reason); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		record.Status = &target
		if reason != nil {
			record.UnqualifiedReason = *reason
		}
		updated = record
		return nil
	})
	if err != nil {
		if bizcode.CodeOf(err) == bizcode.ServiceError {
			fs.log.Error("Transition failed", "error", err, "index", index, "target", target.String())
		} else {
			fs.log.Warn("Transition rejected", "code", bizcode.CodeOf(err), "index", index, "target", target.String())
		}
		return nil, err
	}
	fs.log.Info("Formula transitioned", "index", index, "status", target.String())
	return updated, nil
}

// runInTx reuses an ambient transaction when the caller already opened one.
func (fs *formulaService) runInTx(tx *gorm.DB, fn func(innerTx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return fs.db.Transaction(fn)
}
