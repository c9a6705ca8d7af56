package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
	"github.com/qiwenmao/coatlab-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "coatlab", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "formula_record"
		DROP CONSTRAINT IF EXISTS "fk_formula_record_design_task_index"
	`).Error; err != nil {
		return err
	}
	if err := s.db.Exec(`
		ALTER TABLE "formula_record"
		ADD CONSTRAINT "fk_formula_record_design_task_index"
		FOREIGN KEY ("design_task_index")
		REFERENCES "design_task"("index")
		ON DELETE CASCADE
	`).Error; err != nil {
		s.log.Error("Failed to add formula_record foreign key", "error", err)
		return err
	}
	return nil
}

// AutoMigrate creates the schema on any gorm dialect. Tests reuse it against
// in-memory sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.DesignTask{},
		&types.FormulaRecord{},
		&types.RawMaterial{},
	)
}

// defaultVocabulary is the starter raw-material list loaded on first boot.
var defaultVocabulary = []struct {
	name     string
	category string
}{
	{"Epoxy resin E-20", "resin"},
	{"Polyester resin", "resin"},
	{"Acrylic resin", "resin"},
	{"Titanium dioxide R-996", "pigment"},
	{"Carbon black", "pigment"},
	{"Iron oxide red", "pigment"},
	{"Xylene", "solvent"},
	{"Butyl acetate", "solvent"},
	{"Propylene glycol methyl ether acetate", "solvent"},
	{"HDI trimer curing agent", "curing agent"},
	{"Leveling agent BYK-333", "additive"},
	{"Defoamer BYK-066N", "additive"},
	{"Matting agent", "additive"},
}

// SeedRawMaterials inserts the default vocabulary when the table is empty.
func (s *PostgresService) SeedRawMaterials() error {
	var count int64
	if err := s.db.Model(&types.RawMaterial{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	s.log.Info("Seeding raw material vocabulary...", "count", len(defaultVocabulary))
	materials := make([]*types.RawMaterial, 0, len(defaultVocabulary))
	for _, v := range defaultVocabulary {
		materials = append(materials, &types.RawMaterial{
			ID:       uuid.New(),
			Name:     v.name,
			Category: v.category,
		})
	}
	return s.db.Create(&materials).Error
}
