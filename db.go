package main

import (
	"os"

	"examocr/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := cfg.DBDSN
	if dsn == "" {
		logger.Fatal("DB_DSN is not set. This service requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect postgres database", zap.Error(err))
	}
	// Migrate models individually so a failure on one doesn't block others.
	if cfg.DBAutoMigrate {
		if err := db.AutoMigrate(&models.Document{}); err != nil {
			logger.Warn("migration warning (documents)", zap.Error(err))
		}
		if err := db.AutoMigrate(&models.User{}); err != nil {
			logger.Warn("migration warning (users)", zap.Error(err))
		}
	}
	seedDB()
}

func seedDB() {
	// Seed an admin user so the auth layer is usable out of the box.
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin := models.User{Username: "admin", HashedPassword: hashedPassword, Role: "administrator"}
		if err := db.Create(&admin).Error; err != nil {
			logger.Warn("failed to seed admin user", zap.Error(err))
		} else {
			logger.Info("seeded admin user", zap.String("username", "admin"))
		}
	}
	ensureDataDirs()
}

// ensureDataDirs creates the filesystem roots consumed by the pipeline.
func ensureDataDirs() {
	for _, dir := range []string{cfg.UploadDir, cfg.PDFDir, cfg.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("failed to create data dir", zap.String("dir", dir), zap.Error(err))
		}
	}
}
