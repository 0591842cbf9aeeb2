package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"score_tracker/internal/config"
	"score_tracker/internal/database"
	"score_tracker/internal/handlers"
	"score_tracker/internal/migrations"
	"score_tracker/internal/redis"
	"score_tracker/internal/repository"
	"score_tracker/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)
	loc := cfg.Location()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{
		LogLevel:     cfg.DBLogLevel,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Ensuring database schema is up to date...")
	if err := migrations.Run(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Stats cache: redis when configured, otherwise nothing is cached
	var cache services.StatsCache = services.NoopStatsCache{}
	if cfg.RedisURL != "" {
		redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.CacheTTL)*time.Second)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		cache = redisClient
	} else {
		log.Println("REDIS_URL not set, stats cache disabled")
	}

	store := repository.NewStore(db)

	// Initialize services
	userService := services.NewUserService(store.Users, cfg.JWTSecret, cfg.TokenTTL)
	statsService := services.NewStatsService(store, cache, loc)
	dailyScoreService := services.NewDailyScoreService(store, loc)
	eventService := services.NewEventService(store, dailyScoreService, statsService, loc)
	eventTypeService := services.NewEventTypeService(store, statsService)
	planService := services.NewPlanService(store)
	reconcileService := services.NewReconcileService(store, dailyScoreService, statsService, loc)

	scheduler := services.NewSchedulerService(loc)
	if cfg.ReconcileAt != "" {
		if _, err := scheduler.ScheduleDaily(cfg.ReconcileAt, reconcileService.Yesterday); err != nil {
			log.Fatal("Failed to schedule daily reconcile:", err)
		}
		log.Printf("Daily score reconcile scheduled at %s (%s)", cfg.ReconcileAt, loc)
	}
	scheduler.Start()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	apiHandler := handlers.NewAPIHandler(eventService, dailyScoreService, statsService, eventTypeService, loc)
	planHandler := handlers.NewPlanHandler(planService)

	router := handlers.NewRouter(userService, authHandler, apiHandler, planHandler, cfg.RequestTimeout)

	addr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	scheduler.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Shutdown complete")
}
