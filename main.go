package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ringsaturn/tzf"
	"go.uber.org/zap"

	"tripmate/config"
	"tripmate/database"
	"tripmate/handlers"
	"tripmate/logger"
	"tripmate/services"
	"tripmate/sessions"
)

func main() {
	// Load .env file (ignored in production where env vars are set directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	logger.Init(cfg.Log.Level)
	lg := logger.L()
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.Open(ctx, cfg.Postgres, lg)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	var chats sessions.Store = sessions.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rs, err := sessions.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			lg.Warn("redis unavailable, keeping chat history in memory", zap.Error(err))
		} else {
			defer rs.Close()
			chats = rs
		}
	}

	weatherOpts := []services.WeatherOption{}
	if finder, err := tzf.NewDefaultFinder(); err != nil {
		lg.Warn("timezone finder unavailable", zap.Error(err))
	} else {
		weatherOpts = append(weatherOpts, services.WithTimezoneFinder(finder))
	}

	amadeus := services.NewAmadeusClient(cfg.Amadeus, lg)
	weather := services.NewWeatherClient(cfg.Weather, lg, weatherOpts...)
	planner := services.NewPlanner(services.NewLLMClient(cfg.LLM, lg))

	h := handlers.New(handlers.Deps{
		Plans:         store,
		Chats:         chats,
		Offers:        amadeus,
		Weather:       weather,
		Planner:       planner,
		DefaultOrigin: cfg.Amadeus.DefaultOrigin,
		Log:           lg,
	})

	if cfg.HTTP.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// Trusted proxies (hosted deployments sit behind a proxy)
	r.SetTrustedProxies([]string{"0.0.0.0/0"})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	h.Register(r.Group("/api"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	lg.Info("TripMate backend starting", zap.String("port", cfg.HTTP.Port))
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		lg.Fatal("failed to start server", zap.Error(err))
	}
}
