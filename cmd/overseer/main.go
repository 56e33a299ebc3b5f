package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/archive"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/config"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/generate"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/handler"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/llm"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/middleware"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/quality"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/service"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/store"
	"github.com/Kvkthecreator/yarnnnn-sub006/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "overseer",
	Short: "Supervision backend for recurring AI-generated deliverables",
	Long:  `Overseer tracks recurring deliverables through generation, staging, review and approval, and keeps the attention queue of drafts waiting on a human decision.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(configPath)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded", "db", cfg.DB.Path)

	db, err := store.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	queries := store.NewQueries(db)

	policy := quality.Policy{
		ExcellentBelow: cfg.Quality.ExcellentBelow,
		GoodBelow:      cfg.Quality.GoodBelow,
		TrendEpsilon:   cfg.Quality.TrendEpsilon,
		TrendWindow:    cfg.Quality.TrendWindow,
		EMAAlpha:       cfg.Quality.EMAAlpha,
		MaxPreferences: cfg.Quality.MaxPreferences,
	}

	generator := generate.NewClient(&cfg.Generator)
	if generator.Enabled() {
		slog.Info("generation client enabled", "url", cfg.Generator.APIURL)
	} else {
		slog.Info("generation client disabled, runs wait for callbacks")
	}

	archiver, err := archive.New(&cfg.Archive)
	if err != nil {
		return fmt.Errorf("failed to initialize archive storage: %w", err)
	}
	if archiver != nil {
		if err := archiver.EnsureBucket(context.Background()); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		slog.Info("archive storage enabled", "bucket", cfg.Archive.Bucket)
	}

	var summarizer quality.Summarizer
	if llmClient := llm.NewClient(&cfg.Summarizer); llmClient != nil {
		summarizer = llmClient
		slog.Info("preference summarizer enabled", "model", cfg.Summarizer.Model)
	}

	claimTTL := time.Duration(cfg.Review.ClaimTTLMinutes) * time.Minute
	deliverables := service.NewDeliverables(queries, policy, generator, archiver, summarizer, claimTTL)

	authHandler := handler.NewAuthHandler(cfg)
	deliverableHandler := handler.NewDeliverableHandler(deliverables)
	reviewHandler := handler.NewReviewHandler(deliverables)
	callbackHandler := handler.NewCallbackHandler(deliverables)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/generation/callback", callbackHandler.HandleCallback)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.GET("/deliverables", deliverableHandler.List)
		protected.POST("/deliverables", deliverableHandler.Create)
		protected.GET("/deliverables/:id", deliverableHandler.Get)
		protected.PATCH("/deliverables/:id", deliverableHandler.Update)
		protected.POST("/deliverables/:id/run", deliverableHandler.Run)
		protected.POST("/deliverables/:id/pause", deliverableHandler.Pause)
		protected.POST("/deliverables/:id/resume", deliverableHandler.Resume)
		protected.POST("/deliverables/:id/archive", deliverableHandler.Archive)
		protected.GET("/deliverables/:id/feedback", deliverableHandler.Feedback)

		protected.GET("/attention", reviewHandler.Attention)
		protected.POST("/deliverables/:id/versions/:vid/claim", reviewHandler.Claim)
		protected.POST("/deliverables/:id/versions/:vid/approve", reviewHandler.Approve)
		protected.POST("/deliverables/:id/versions/:vid/reject", reviewHandler.Reject)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
