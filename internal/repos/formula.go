package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type FormulaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.FormulaRecord) (*types.FormulaRecord, error)
	GetByIndex(ctx context.Context, tx *gorm.DB, index string) (*types.FormulaRecord, error)
	ListByTask(ctx context.Context, tx *gorm.DB, designTaskIndex string) ([]*types.FormulaRecord, error)
	CountByTask(ctx context.Context, tx *gorm.DB, designTaskIndex string) (int64, error)
	// CountSiblingsWithStatus counts records in the task holding status,
	// excluding excludeIndex. Used for the per-task exclusivity checks.
	CountSiblingsWithStatus(ctx context.Context, tx *gorm.DB, designTaskIndex, excludeIndex string, status types.QualifiedStatus) (int64, error)
	Save(ctx context.Context, tx *gorm.DB, record *types.FormulaRecord) (*types.FormulaRecord, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, index string, status types.QualifiedStatus, unqualifiedReason *string) error
	Delete(ctx context.Context, tx *gorm.DB, index string) (int64, error)
}

type formulaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormulaRepo(db *gorm.DB, baseLog *logger.Logger) FormulaRepo {
	repoLog := baseLog.With("repo", "FormulaRepo")
	return &formulaRepo{db: db, log: repoLog}
}

func (r *formulaRepo) Create(ctx context.Context, tx *gorm.DB, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *formulaRepo) GetByIndex(ctx context.Context, tx *gorm.DB, index string) (*types.FormulaRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.FormulaRecord
	err := transaction.WithContext(ctx).
		Where(`"index" = ?`, index).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *formulaRepo) ListByTask(ctx context.Context, tx *gorm.DB, designTaskIndex string) ([]*types.FormulaRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.FormulaRecord
	if err := transaction.WithContext(ctx).
		Where("design_task_index = ?", designTaskIndex).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *formulaRepo) CountByTask(ctx context.Context, tx *gorm.DB, designTaskIndex string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	// Soft-deleted rows stay in the count so version labels minted from it
	// never repeat within a task.
	if err := transaction.WithContext(ctx).
		Unscoped().
		Model(&types.FormulaRecord{}).
		Where("design_task_index = ?", designTaskIndex).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *formulaRepo) CountSiblingsWithStatus(ctx context.Context, tx *gorm.DB, designTaskIndex, excludeIndex string, status types.QualifiedStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.FormulaRecord{}).
		Where("design_task_index = ?", designTaskIndex).
		Where(`"index" <> ?`, excludeIndex).
		Where("formula_qualified_status = ?", int(status)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *formulaRepo) Save(ctx context.Context, tx *gorm.DB, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Status, version and the two reason fields are written only by Create
	// and UpdateStatus; omitting them here keeps a stale in-memory copy
	// from clobbering a transition that committed after the caller's read.
	if err := transaction.WithContext(ctx).
		Omit("Status", "Version", "UnqualifiedReason", "AIAnalysisUnqualifiedReason").
		Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *formulaRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, index string, status types.QualifiedStatus, unqualifiedReason *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"formula_qualified_status": int(status),
	}
	if unqualifiedReason != nil {
		updates["formula_unqualified_reason"] = *unqualifiedReason
	}
	return transaction.WithContext(ctx).
		Model(&types.FormulaRecord{}).
		Where(`"index" = ?`, index).
		Updates(updates).Error
}

func (r *formulaRepo) Delete(ctx context.Context, tx *gorm.DB, index string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where(`"index" = ?`, index).
		Delete(&types.FormulaRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
