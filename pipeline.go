package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"examocr/models"
	"examocr/pkg/ocr"
	"examocr/pkg/parser"
	"examocr/pkg/results"
)

// Rasterizer converts a document file into its ordered page images.
type Rasterizer interface {
	Pages(path string) ([]image.Image, error)
}

// EngineSource resolves an engine name to a backend variant.
type EngineSource interface {
	Resolve(name string) ocr.Engine
}

// Pipeline drives a document from intake to a terminal status. Intake
// creates the record synchronously; the attempt body runs in its own
// goroutine, admitted through a weighted semaphore so the number of
// concurrently executing attempts stays bounded.
type Pipeline struct {
	docs      DocumentStore
	artifacts *results.Store
	engines   EngineSource
	raster    Rasterizer
	uploadDir string
	sem       *semaphore.Weighted
	log       *zap.Logger
	wg        sync.WaitGroup
}

func NewPipeline(docs DocumentStore, artifacts *results.Store, engines EngineSource, raster Rasterizer, uploadDir string, maxConcurrent int64, log *zap.Logger) *Pipeline {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{
		docs:      docs,
		artifacts: artifacts,
		engines:   engines,
		raster:    raster,
		uploadDir: uploadDir,
		sem:       semaphore.NewWeighted(maxConcurrent),
		log:       log,
	}
}

// Submit creates the processing record for the uploaded file and schedules
// the attempt. It returns the assigned document id immediately; the caller
// must poll for the outcome.
func (p *Pipeline) Submit(filePath, docType, engineName string) (string, error) {
	doc := &models.Document{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filePath),
		DocType:   docType,
		OCREngine: engineName,
		Status:    models.StatusProcessing,
	}
	if err := p.docs.Create(doc); err != nil {
		return "", fmt.Errorf("create document record: %w", err)
	}
	p.wg.Add(1)
	go p.run(doc.ID, filePath, docType, engineName)
	return doc.ID, nil
}

// Wait blocks until every scheduled attempt has finished. Used by graceful
// shutdown and tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// run executes one attempt and writes the terminal outcome to both sinks.
// Errors never propagate past this boundary; the caller already received
// its queued acknowledgment.
func (p *Pipeline) run(id, filePath, docType, engineName string) {
	defer p.wg.Done()
	ctx := context.Background()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.recordFailure(id, filePath, docType, engineName, err)
		return
	}
	defer p.sem.Release(1)

	parsed, rawPages, err := p.process(ctx, id, filePath, docType, engineName)
	if err != nil {
		p.recordFailure(id, filePath, docType, engineName, err)
		return
	}

	p.artifacts.Save(results.Payload{
		DocID:        id,
		Filename:     filepath.Base(filePath),
		DocType:      docType,
		OCREngine:    engineName,
		Status:       models.StatusCompleted,
		ParsedResult: parsed,
		RawTextPages: rawPages,
	})
	if err := p.docs.MarkCompleted(id, parsed, rawPages); err != nil {
		p.log.Error("failed to update document status", zap.String("doc_id", id), zap.Error(err))
		return
	}
	p.log.Info("document processed",
		zap.String("doc_id", id),
		zap.String("engine", engineName),
		zap.Int("pages", len(rawPages)),
		zap.Int("records", len(parsed)))
}

func (p *Pipeline) recordFailure(id, filePath, docType, engineName string, cause error) {
	p.log.Error("document processing failed", zap.String("doc_id", id), zap.Error(cause))
	p.artifacts.Save(results.Payload{
		DocID:     id,
		Filename:  filepath.Base(filePath),
		DocType:   docType,
		OCREngine: engineName,
		Status:    models.StatusFailed,
		Error:     cause.Error(),
	})
	if err := p.docs.MarkFailed(id, cause); err != nil {
		p.log.Error("failed to update document status", zap.String("doc_id", id), zap.Error(err))
	}
}

// process runs steps 1-4 of the attempt body: rasterize, per-page OCR with
// conditional handwriting cleanup, line-stream assembly, and parsing. All
// pages run sequentially in page order; a failure on any page aborts the
// rest. Temporary page images are removed when the attempt ends.
func (p *Pipeline) process(ctx context.Context, id, filePath, docType, engineName string) ([]models.QuestionRecord, []string, error) {
	pages, err := p.raster.Pages(filePath)
	if err != nil {
		return nil, nil, err
	}
	engine := p.engines.Resolve(engineName)

	var tempFiles []string
	defer func() {
		for _, f := range tempFiles {
			_ = os.Remove(f)
		}
	}()

	rawPages := make([]string, 0, len(pages))
	for i, page := range pages {
		tempPath := filepath.Join(p.uploadDir, fmt.Sprintf("%s_page_%d.png", id, i))
		if err := imaging.Save(page, tempPath); err != nil {
			return nil, nil, fmt.Errorf("save page %d image: %w", i+1, err)
		}
		tempFiles = append(tempFiles, tempPath)

		ocrPath := tempPath
		// Paddle does its own layout-aware cleanup; everything else gets
		// the handwriting preprocessor on answer sheets.
		if docType == models.DocTypeAnswerSheet && engine.Name() != ocr.EnginePaddle {
			processed, err := ocr.PreprocessHandwriting(tempPath)
			if err != nil {
				return nil, nil, fmt.Errorf("preprocess page %d: %w", i+1, err)
			}
			tempFiles = append(tempFiles, processed)
			ocrPath = processed
		}

		pageText, _, err := engine.ExtractText(ctx, ocrPath)
		if err != nil {
			return nil, nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		rawPages = append(rawPages, pageText)
	}

	// Union line stream: questions and answers may span a page break, so
	// page boundaries are deliberately not parse boundaries.
	lines := strings.Split(strings.Join(rawPages, "\n"), "\n")

	var parsed []models.QuestionRecord
	if docType == models.DocTypeQuestionPaper {
		parsed = parser.ParseQuestionPaper(lines)
	} else {
		parsed = parser.ParseAnswerSheet(lines)
	}
	if parsed == nil {
		parsed = []models.QuestionRecord{}
	}
	return parsed, rawPages, nil
}
