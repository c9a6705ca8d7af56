package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type DesignTaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, task *types.DesignTask) (*types.DesignTask, error)
	GetByIndex(ctx context.Context, tx *gorm.DB, index string) (*types.DesignTask, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.DesignTask, error)
	Exists(ctx context.Context, tx *gorm.DB, index string) (bool, error)
}

type designTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDesignTaskRepo(db *gorm.DB, baseLog *logger.Logger) DesignTaskRepo {
	repoLog := baseLog.With("repo", "DesignTaskRepo")
	return &designTaskRepo{db: db, log: repoLog}
}

func (r *designTaskRepo) Create(ctx context.Context, tx *gorm.DB, task *types.DesignTask) (*types.DesignTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (r *designTaskRepo) GetByIndex(ctx context.Context, tx *gorm.DB, index string) (*types.DesignTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var task types.DesignTask
	err := transaction.WithContext(ctx).
		Where(`"index" = ?`, index).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *designTaskRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.DesignTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DesignTask
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *designTaskRepo) Exists(ctx context.Context, tx *gorm.DB, index string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.DesignTask{}).
		Where(`"index" = ?`, index).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
