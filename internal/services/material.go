package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

const (
	vocabularyCacheKey = "coatlab:raw_material:vocabulary"
	vocabularyCacheTTL = 5 * time.Minute
)

// RawMaterialService serves the controlled ingredient vocabulary. The list is
// read on every formula edit dialog, so it is cached in redis when a client
// is available; cache misses are collapsed through singleflight.
type RawMaterialService interface {
	List(ctx context.Context) ([]*types.RawMaterial, error)
}

type rawMaterialService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.RawMaterialRepo
	rdb   *goredis.Client
	group singleflight.Group
}

func NewRawMaterialService(db *gorm.DB, baseLog *logger.Logger, repo repos.RawMaterialRepo, rdb *goredis.Client) RawMaterialService {
	serviceLog := baseLog.With("service", "RawMaterialService")
	if rdb == nil {
		serviceLog.Warn("Redis unavailable, vocabulary reads go straight to the database")
	}
	return &rawMaterialService{
		db:   db,
		log:  serviceLog,
		repo: repo,
		rdb:  rdb,
	}
}

func (ms *rawMaterialService) List(ctx context.Context) ([]*types.RawMaterial, error) {
	if ms.rdb != nil {
		raw, err := ms.rdb.Get(ctx, vocabularyCacheKey).Bytes()
		if err == nil {
			var cached []*types.RawMaterial
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
			ms.log.Warn("Corrupt vocabulary cache entry, refetching", "key", vocabularyCacheKey)
		} else if err != goredis.Nil {
			ms.log.Warn("Vocabulary cache read failed", "error", err)
		}
	}

	v, err, _ := ms.group.Do(vocabularyCacheKey, func() (interface{}, error) {
		materials, err := ms.repo.List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("list raw materials: %w", err)
		}
		if ms.rdb != nil {
			if raw, err := json.Marshal(materials); err == nil {
				if err := ms.rdb.Set(ctx, vocabularyCacheKey, raw, vocabularyCacheTTL).Err(); err != nil {
					ms.log.Warn("Vocabulary cache write failed", "error", err)
				}
			}
		}
		return materials, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*types.RawMaterial), nil
}
