package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"boardhub/internal/auth"
	"boardhub/internal/games"
	"boardhub/internal/pipeline"
	"boardhub/internal/syncevents"
	"boardhub/pkg/database"
	"boardhub/pkg/models"
	"boardhub/pkg/utils"
)

func main() {
	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	crawlCfg := utils.LoadCrawlConfig()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := syncevents.NewHub()
	router.GET("/ws", syncevents.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": hub.Connections(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": hub.Connections(),
		})
	})

	// Games (public)
	gamesRepo := games.NewRepo(db)
	gamesHandler := games.NewHandler(gamesRepo)
	gamesHandler.RegisterRoutes(router.Group("/games"))

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Admin (protected): re-import the dataset artifact into the games table
	admin := router.Group("/admin")
	admin.Use(auth.RequireAuth(tokenSvc, authRepo))

	admin.POST("/refresh", func(c *gin.Context) {
		recs, err := pipeline.ReadArtifact(crawlCfg.OutPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read dataset failed", "detail": err.Error()})
			return
		}

		rows := make([]models.GameRow, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, models.RowFromExport(rec))
		}

		if err := gamesRepo.ReplaceAll(c.Request.Context(), rows); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
			return
		}

		hub.Broadcast(syncevents.Event{
			Type:  syncevents.EventDatasetRefreshed,
			Count: len(rows),
		})
		c.JSON(http.StatusOK, gin.H{"status": "refreshed", "count": len(rows)})
	})

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("HTTP API server listening on :8080")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Println("server stopped")
}
