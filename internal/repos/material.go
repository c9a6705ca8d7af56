package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type RawMaterialRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.RawMaterial, error)
}

type rawMaterialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawMaterialRepo(db *gorm.DB, baseLog *logger.Logger) RawMaterialRepo {
	repoLog := baseLog.With("repo", "RawMaterialRepo")
	return &rawMaterialRepo{db: db, log: repoLog}
}

func (r *rawMaterialRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.RawMaterial, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RawMaterial
	if err := transaction.WithContext(ctx).
		Order("category, name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
