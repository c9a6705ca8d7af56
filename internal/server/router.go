package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/qiwenmao/coatlab-backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName        string
	FormulaHandler     *handlers.FormulaHandler
	DesignTaskHandler  *handlers.DesignTaskHandler
	RawMaterialHandler *handlers.RawMaterialHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.GET("/healthcheck", handlers.HealthCheck)

	// Formula lifecycle
	router.GET("/formula/list/:designTaskIndex", cfg.FormulaHandler.List)
	router.POST("/formula/create/:designTaskIndex", cfg.FormulaHandler.Create)
	router.PUT("/formula/update/:index", cfg.FormulaHandler.Update)
	router.DELETE("/formula/delete/:index", cfg.FormulaHandler.Delete)
	router.POST("/formula/pending", cfg.FormulaHandler.MarkPending)
	router.POST("/formula/qualified", cfg.FormulaHandler.MarkQualified)
	router.POST("/formula/unqualified", cfg.FormulaHandler.MarkUnqualified)
	router.POST("/formula/production", cfg.FormulaHandler.MarkProduction)

	// Supporting lookups
	router.POST("/designtask/create", cfg.DesignTaskHandler.Create)
	router.GET("/designtask/list", cfg.DesignTaskHandler.List)
	router.GET("/material/list", cfg.RawMaterialHandler.List)

	return router
}
