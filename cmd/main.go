package main

import (
	"context"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/qiwenmao/coatlab-backend/internal/db"
	"github.com/qiwenmao/coatlab-backend/internal/handlers"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/observability"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/server"
	"github.com/qiwenmao/coatlab-backend/internal/services"
	"github.com/qiwenmao/coatlab-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "coatlab-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOtel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	if err = postgresService.SeedRawMaterials(); err != nil {
		log.Warn("Raw material seed failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis (optional, vocabulary cache only)
	var rdb *goredis.Client
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	if redisAddr != "" {
		candidate := goredis.NewClient(&goredis.Options{
			Addr:        redisAddr,
			DialTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := candidate.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, continuing without vocabulary cache", "error", err)
			_ = candidate.Close()
		} else {
			rdb = candidate
		}
		cancel()
	}

	// Repos
	log.Info("Setting up Repos from main...")
	designTaskRepo := repos.NewDesignTaskRepo(thePG, log)
	formulaRepo := repos.NewFormulaRepo(thePG, log)
	rawMaterialRepo := repos.NewRawMaterialRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	designTaskService := services.NewDesignTaskService(thePG, log, designTaskRepo)
	formulaService := services.NewFormulaService(thePG, log, formulaRepo, designTaskRepo)
	rawMaterialService := services.NewRawMaterialService(thePG, log, rawMaterialRepo, rdb)

	// Handlers
	log.Info("Setting up Handlers from main...")
	formulaHandler := handlers.NewFormulaHandler(log, formulaService)
	designTaskHandler := handlers.NewDesignTaskHandler(log, designTaskService)
	rawMaterialHandler := handlers.NewRawMaterialHandler(log, rawMaterialService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        "coatlab-backend",
		FormulaHandler:     formulaHandler,
		DesignTaskHandler:  designTaskHandler,
		RawMaterialHandler: rawMaterialHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server...", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
