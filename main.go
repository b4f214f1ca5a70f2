package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/config"
	"github.com/yeremiapane/cafe-pos/database"
	"github.com/yeremiapane/cafe-pos/router"
	"github.com/yeremiapane/cafe-pos/utils"
)

func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed admin: %v", err)
	}

	r := router.SetupRouter(db, cfg)
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.Warnf("trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Server forced to shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	utils.InfoLogger.Println("Server exited")
}
