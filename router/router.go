package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/cafe-pos/config"
	"github.com/yeremiapane/cafe-pos/controllers"
	"github.com/yeremiapane/cafe-pos/middlewares"
	"github.com/yeremiapane/cafe-pos/realtime"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/services"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter wires registries, hub, services and controllers. The lock and
// presence registries live exactly as long as the returned engine.
func SetupRouter(db *gorm.DB, cfg config.Config) *gin.Engine {
	r := gin.New()

	locks := registry.NewTableLocks()
	presence := registry.NewPresence()
	tableSvc := services.NewTableService(db)
	saleSvc := services.NewSaleService(db)
	hub := realtime.NewHub(tableSvc, locks, presence)

	tableCtrl := controllers.NewTableController(tableSvc, hub)
	saleCtrl := controllers.NewSaleController(saleSvc, hub)
	productCtrl := controllers.NewProductController(db)
	authCtrl := controllers.NewAuthController(db, presence, hub, cfg.SessionSecret)
	realtimeCtrl := controllers.NewRealtimeController(hub, presence, cfg.SessionSecret, cfg.AllowedOrigin)

	apiLimiter := middlewares.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	loginLimiter := middlewares.NewLoginRateLimiter(cfg.LoginRatePerMin)

	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.AllowedOrigin))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Channel: authenticated by query token after upgrade
	r.GET("/ws", realtimeCtrl.Connect)

	r.POST("/login", loginLimiter.RateLimit(), authCtrl.Login)

	auth := r.Group("/")
	auth.Use(apiLimiter.RateLimit())
	auth.Use(middlewares.SessionAuth(cfg.SessionSecret, presence))
	{
		auth.POST("/logout", authCtrl.Logout)
		auth.GET("/users/online", authCtrl.GetOnlineUsers)

		auth.GET("/tables", tableCtrl.GetAllTables)
		auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
		auth.PATCH("/tables/:table_id/state", tableCtrl.UpdateTableState)

		auth.POST("/sales", saleCtrl.ProcessSale)
		auth.GET("/sales", saleCtrl.GetRecentSales)

		auth.GET("/products", productCtrl.GetAllProducts)
		auth.GET("/products/:product_id", productCtrl.GetProductByID)
	}

	admin := auth.Group("/")
	admin.Use(middlewares.RequireRole())
	{
		admin.POST("/tables", tableCtrl.CreateTable)
		admin.PUT("/tables/:table_id", tableCtrl.UpdateTable)
		admin.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
		admin.POST("/tables/bulk-generate", tableCtrl.BulkGenerate)
		admin.POST("/admin/sessions/:staff_id/revoke", authCtrl.RevokeSession)
	}

	return r
}
