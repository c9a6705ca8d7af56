package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qiwenmao/coatlab-backend/internal/db"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

func TestRawMaterialListWithoutRedis(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "materials_test.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seed := []*types.RawMaterial{
		{ID: uuid.New(), Name: "Xylene", Category: "solvent"},
		{ID: uuid.New(), Name: "Epoxy resin E-20", Category: "resin"},
	}
	if err := gdb.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	log := logger.NewNop()
	svc := NewRawMaterialService(gdb, log, repos.NewRawMaterialRepo(gdb, log), nil)

	materials, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("material count = %d, want 2", len(materials))
	}
	// Ordered by category then name.
	if materials[0].Category != "resin" {
		t.Fatalf("ordering wrong: %+v", materials)
	}
}
