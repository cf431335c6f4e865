package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/dosewise/internal/config"
	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/engine"
)

const requestIDHeader = "X-Request-ID"

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type lookupRequest struct {
	DrugName string `json:"drug_name" form:"drug_name"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	logger := cfg.Logger()

	ctx := context.Background()
	opts := cfg.EngineOptions(logger)

	var (
		db  HealthChecker
		eng *engine.Engine
	)
	if cfg.EnableDB {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer pool.Close()
		db = pool

		store, err := dataset.LoadPostgres(ctx, pool, cfg.DatasetTable)
		if err != nil {
			log.Fatalf("dataset load failed: %v", err)
		}
		eng, err = engine.New(ctx, store, opts)
		if err != nil {
			log.Fatalf("engine startup failed: %v", err)
		}
	} else {
		eng, err = engine.Initialize(ctx, opts)
		if err != nil {
			log.Fatalf("engine startup failed: %v", err)
		}
	}

	sum := eng.Summary()
	log.Printf("engine ready: %d drugs, %d clusters, %d noise", sum.Rows, sum.Clusters, sum.Noise)

	router := setupRouter(eng, db)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Printf("server listening on :%s", cfg.Port)
	waitForShutdown(server)
}

// loadConfig reads the optional YAML file named by DOSEWISE_CONFIG on top of
// the environment.
func loadConfig() (*config.Config, error) {
	return config.Load(getEnv("DOSEWISE_CONFIG", ""))
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func setupRouter(eng *engine.Engine, db HealthChecker) *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		summary := eng.Summary()
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled", "engine": summary})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := db.Ping(ctx); err != nil {
			dbStatus = fmt.Sprintf("unhealthy: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     dbStatus,
				"engine": summary,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"db":     dbStatus,
			"engine": summary,
		})
	})

	api := router.Group("/api")

	api.POST("/drugs/lookup", func(c *gin.Context) {
		var payload lookupRequest
		if err := c.ShouldBind(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		respondLookup(c, eng, payload.DrugName)
	})

	api.GET("/drugs/lookup", func(c *gin.Context) {
		respondLookup(c, eng, c.Query("q"))
	})

	api.GET("/clusters", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"clusters": eng.Clusters()})
	})

	api.GET("/clusters/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cluster_id"})
			return
		}
		detail, ok := eng.Cluster(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "cluster": id})
			return
		}
		c.JSON(http.StatusOK, detail)
	})

	return router
}

func respondLookup(c *gin.Context, eng *engine.Engine, query string) {
	result, err := eng.Resolve(query)
	var notFound *engine.NotFoundError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, engine.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "query": notFound.Query})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// requestID propagates the caller's X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
