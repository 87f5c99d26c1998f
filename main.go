package main

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"examocr/pkg/ocr"
	"examocr/pkg/raster"
	"examocr/pkg/results"
)

var (
	cfg          Settings
	logger       *zap.Logger
	docs         DocumentStore
	resultsStore *results.Store
	pipe         *Pipeline
)

func main() {
	var err error
	cfg, err = loadSettings()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err = newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	jwtSecret = []byte(cfg.JWTSecret)

	// Lightweight migrate command: `./examocr migrate` runs AutoMigrate and
	// seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		logger.Info("migration and seeding completed")
		return
	}

	initDB()
	docs = newGormDocumentStore(db)

	resultsStore, err = results.NewStore(cfg.ResultsDir, logger)
	if err != nil {
		logger.Fatal("failed to init results store", zap.Error(err))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := resultsStore.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("results watcher stopped", zap.Error(err))
		}
	}()

	engines := ocr.NewRegistry(cfg.OCR, logger)
	pipe = NewPipeline(docs, resultsStore, engines, raster.PDF{}, cfg.UploadDir, cfg.MaxConcurrentAttempts, logger)

	r := gin.Default()
	setupRoutes(r)

	r.Static("/pdfs", cfg.PDFDir)
	r.Static("/results", cfg.ResultsDir)
	if _, err := os.Stat(cfg.StaticDir); err == nil {
		r.Static("/static", cfg.StaticDir)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticDir, "index.html"))
		})
	}

	if err := r.Run(cfg.ServerAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// newLogger returns a development logger when debug is set, otherwise the
// JSON production logger.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
