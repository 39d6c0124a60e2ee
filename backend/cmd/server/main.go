package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/analyzer"
	"storygraph/backend/internal/graph"
	"storygraph/backend/internal/story"
	"storygraph/backend/pkg/config"
	apperrors "storygraph/backend/pkg/errors"
	"storygraph/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting story graph API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Initialize dependencies
	repo := graph.NewRepository(driver)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	manuscriptAnalyzer := analyzer.NewLLMAnalyzer(cfg.LiteLLMURL, cfg.OpenRouterAPIKey, cfg.ModelID)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Ingest one chapter's pre-computed analysis
		api.POST("/analysis/sync", func(c *gin.Context) {
			var analysis story.ChapterAnalysis
			if err := c.ShouldBindJSON(&analysis); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.SyncTimeout)
			defer cancel()

			// Sync failures come back as a result, not an error, so the
			// caller keeps the analysis and decides on retry
			result := repo.SyncChapter(ctx, &analysis)
			c.JSON(http.StatusOK, result)
		})

		// Analyze raw chapter text, then sync the result
		api.POST("/chapters/analyze", func(c *gin.Context) {
			var req struct {
				ProjectID     string `json:"projectId" binding:"required"`
				ChapterNumber int    `json:"chapterNumber" binding:"required,min=1"`
				Text          string `json:"text" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			reqCtx := c.Request.Context()

			// Previous context keeps entity names consistent across chapters
			previous, err := repo.GetCurrentContext(reqCtx, req.ProjectID)
			if err != nil {
				log.Error("Failed to fetch narrative context", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch narrative context"})
				return
			}

			analysis, err := manuscriptAnalyzer.AnalyzeChapter(reqCtx, analyzer.Request{
				ProjectID:     req.ProjectID,
				ChapterNumber: req.ChapterNumber,
				Text:          req.Text,
				Previous:      previous,
			})
			if err != nil {
				log.Error("Chapter analysis failed", zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "Chapter analysis failed"})
				return
			}

			syncCtx, cancel := context.WithTimeout(reqCtx, cfg.SyncTimeout)
			defer cancel()

			result := repo.SyncChapter(syncCtx, analysis)
			c.JSON(http.StatusOK, gin.H{"analysis": analysis, "sync": result})
		})

		// Full graph overview for one project
		api.GET("/graph", func(c *gin.Context) {
			project := c.Query("project")
			overview, err := repo.GetOverview(c.Request.Context(), project)
			if err != nil {
				respondQueryError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, overview)
		})

		// Time-travel view: the graph as of a chapter
		api.GET("/graph/as-of/:number", func(c *gin.Context) {
			number, err := strconv.Atoi(c.Param("number"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "chapter number must be an integer"})
				return
			}

			overview, err := repo.GetAsOfChapter(c.Request.Context(), c.Query("project"), number)
			if err != nil {
				respondQueryError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, overview)
		})

		// Chapter navigation metadata
		api.GET("/chapters", func(c *gin.Context) {
			chapters, err := repo.ListChapters(c.Request.Context(), c.Query("project"))
			if err != nil {
				respondQueryError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"chapters": chapters})
		})

		// Current narrative state snapshot
		api.GET("/context", func(c *gin.Context) {
			nc, err := repo.GetCurrentContext(c.Request.Context(), c.Query("project"))
			if err != nil {
				respondQueryError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, nc)
		})

		// Project-scoped wipe; ?project= is required here even though the
		// repository supports a full wipe, so HTTP callers cannot nuke the
		// whole store by accident
		api.DELETE("/graph", func(c *gin.Context) {
			project := c.Query("project")
			if project == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "project is required"})
				return
			}
			if err := repo.Clear(c.Request.Context(), project); err != nil {
				log.Error("Failed to clear project", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear project"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "cleared", "project": project})
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// respondQueryError maps read-side failures to HTTP statuses
func respondQueryError(c *gin.Context, log *zap.Logger, err error) {
	if apperrors.IsErrorType(err, apperrors.ErrorTypeValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Error("Query failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
