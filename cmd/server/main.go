package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skorokhod/furniture_shop/internal/config"
	"github.com/skorokhod/furniture_shop/internal/es"
	"github.com/skorokhod/furniture_shop/internal/handlers"
	"github.com/skorokhod/furniture_shop/internal/handlers/cart"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/logging"
	"github.com/skorokhod/furniture_shop/internal/middleware/csrf"
	"github.com/skorokhod/furniture_shop/internal/monitor"
	"github.com/skorokhod/furniture_shop/internal/mykafka"
	"github.com/skorokhod/furniture_shop/internal/service/orders"
	"github.com/skorokhod/furniture_shop/internal/service/recommend"
	"github.com/skorokhod/furniture_shop/internal/service/token"
	httpserver "github.com/skorokhod/furniture_shop/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(configuration.JWTSecret, "JWT_SECRET")
	config.MustNonEmpty(configuration.RefreshSecret, "REFRESH_SECRET")

	logger := logging.New(configuration.LogLevel)

	db, err := config.InitDB(context.Background(), configuration.DatabaseURL)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWTSecret)
	refreshSecret := []byte(configuration.RefreshSecret)

	var producer *mykafka.Producer
	if len(configuration.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(configuration.KafkaBrokers)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set, event publishing disabled")
	}

	var esClient *elasticsearch.Client
	if configuration.ESURL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("ES_URL not set, search disabled")
	}

	collector := monitor.NewCollector(1000)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpx.ErrorHandler(configuration.Production)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(logging.RequestLogger(logger))
	e.Use(collector.Middleware())
	if configuration.CSRFEnabled {
		e.Use(csrf.Middleware(csrf.Config{
			Secure:    configuration.Production,
			SkipPaths: []string{"/health/live", "/health/ready"},
		}))
	}

	tokenService := &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
	orderService := orders.New(db, configuration.DBTimeout)
	composer := recommend.New(db, configuration.DBTimeout)

	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: producer,
		},
		FurnitureHandler: &handlers.FurnitureHandler{
			DB: db, Producer: producer, ES: esClient, ESIndex: configuration.ESIndex,
		},
		CategoryHandler:       &handlers.CategoryHandler{DB: db},
		ReviewHandler:         &handlers.ReviewHandler{DB: db, Producer: producer},
		CartHandler:           &cart.CartHandler{DB: db, Producer: producer},
		OrderHandler:          &handlers.OrderHandler{Svc: orderService, Producer: producer},
		RecommendationHandler: &handlers.RecommendationHandler{Composer: composer},
		SearchHandler:         &handlers.SearchHandler{ES: esClient, Index: configuration.ESIndex},
		TokenService:          tokenService,
		Monitor:               collector,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", configuration.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
