package main

import (
	"errors"

	"examocr/models"

	"gorm.io/gorm"
)

// ErrDocumentNotFound distinguishes an unknown id from any processing
// status; handlers map it to a not-found response.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore is the status sink: one mutable record per document id.
// Status moves forward only; MarkCompleted and MarkFailed are the two
// terminal transitions and are idempotent.
type DocumentStore interface {
	Create(doc *models.Document) error
	Get(id string) (*models.Document, error)
	MarkCompleted(id string, parsed []models.QuestionRecord, rawPages []string) error
	MarkFailed(id string, cause error) error
}

type gormDocumentStore struct {
	db *gorm.DB
}

func newGormDocumentStore(db *gorm.DB) *gormDocumentStore {
	return &gormDocumentStore{db: db}
}

func (s *gormDocumentStore) Create(doc *models.Document) error {
	return s.db.Create(doc).Error
}

func (s *gormDocumentStore) Get(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *gormDocumentStore) MarkCompleted(id string, parsed []models.QuestionRecord, rawPages []string) error {
	return s.db.Model(&models.Document{}).Where("id = ?", id).
		Updates(models.Document{
			Status:       models.StatusCompleted,
			ParsedResult: parsed,
			RawTextPages: rawPages,
		}).Error
}

func (s *gormDocumentStore) MarkFailed(id string, cause error) error {
	return s.db.Model(&models.Document{}).Where("id = ?", id).
		Updates(models.Document{
			Status: models.StatusFailed,
			Error:  cause.Error(),
		}).Error
}
