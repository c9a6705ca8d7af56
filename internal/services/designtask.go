package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

// DesignTaskService is the minimal parent-entity surface: formulas need a
// real task to attach to. No search, no pagination.
type DesignTaskService interface {
	Create(ctx context.Context, tx *gorm.DB, task *types.DesignTask) (*types.DesignTask, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.DesignTask, error)
}

type designTaskService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.DesignTaskRepo
}

func NewDesignTaskService(db *gorm.DB, baseLog *logger.Logger, repo repos.DesignTaskRepo) DesignTaskService {
	serviceLog := baseLog.With("service", "DesignTaskService")
	return &designTaskService{db: db, log: serviceLog, repo: repo}
}

func (ts *designTaskService) Create(ctx context.Context, tx *gorm.DB, task *types.DesignTask) (*types.DesignTask, error) {
	if task == nil || strings.TrimSpace(task.Name) == "" {
		return nil, bizcode.Newf(bizcode.MissingParameter, "design task name is required")
	}
	if strings.TrimSpace(task.Index) == "" {
		task.Index = uuid.NewString()
	}
	created, err := ts.repo.Create(ctx, tx, task)
	if err != nil {
		ts.log.Error("Create design task failed", "error", err)
		return nil, fmt.Errorf("create design task: %w", err)
	}
	ts.log.Info("Design task created", "index", created.Index, "name", created.Name)
	return created, nil
}

func (ts *designTaskService) List(ctx context.Context, tx *gorm.DB) ([]*types.DesignTask, error) {
	tasks, err := ts.repo.List(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("list design tasks: %w", err)
	}
	return tasks, nil
}
