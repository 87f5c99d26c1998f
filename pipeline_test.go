package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"examocr/models"
	"examocr/pkg/ocr"
	"examocr/pkg/results"
)

// memoryStore is the in-memory DocumentStore used by the pipeline and
// handler tests.
type memoryStore struct {
	mu   sync.Mutex
	recs map[string]models.Document
}

func newMemoryStore() *memoryStore {
	return &memoryStore{recs: make(map[string]models.Document)}
}

func (m *memoryStore) Create(doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[doc.ID] = *doc
	return nil
}

func (m *memoryStore) Get(id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.recs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

func (m *memoryStore) MarkCompleted(id string, parsed []models.QuestionRecord, rawPages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.recs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = models.StatusCompleted
	doc.ParsedResult = parsed
	doc.RawTextPages = rawPages
	m.recs[id] = doc
	return nil
}

func (m *memoryStore) MarkFailed(id string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.recs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = models.StatusFailed
	doc.Error = cause.Error()
	m.recs[id] = doc
	return nil
}

// fakeRaster produces the given number of blank pages for any path.
type fakeRaster struct {
	pages int
	err   error
}

func (f fakeRaster) Pages(string) ([]image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]image.Image, f.pages)
	for i := range out {
		out[i] = imaging.New(60, 40, color.White)
	}
	return out, nil
}

// fakeEngine returns one canned text per page, in call order, and records
// the image paths it was given.
type fakeEngine struct {
	name      string
	pageTexts []string
	failPage  int // 1-based; 0 never fails

	mu    sync.Mutex
	calls int
	paths []string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) ExtractText(_ context.Context, imagePath string) (string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.paths = append(f.paths, imagePath)
	if f.failPage != 0 && f.calls == f.failPage {
		return "", nil, fmt.Errorf("%w: canned failure", ocr.ErrEngineUnavailable)
	}
	text := ""
	if f.calls-1 < len(f.pageTexts) {
		text = f.pageTexts[f.calls-1]
	}
	return text, strings.Split(text, "\n"), nil
}

// fakeEngines resolves every name to the same engine.
type fakeEngines struct{ engine ocr.Engine }

func (f fakeEngines) Resolve(string) ocr.Engine { return f.engine }

func newTestPipeline(t *testing.T, engine ocr.Engine, raster Rasterizer) (*Pipeline, *memoryStore, *results.Store) {
	t.Helper()
	store := newMemoryStore()
	artifacts, err := results.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	pipe := NewPipeline(store, artifacts, fakeEngines{engine}, raster, t.TempDir(), 2, zap.NewNop())
	return pipe, store, artifacts
}

func writeTestUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exam.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))
	return path
}

func TestPipelineCompletesQuestionPaper(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. Hello", "world\n2. Bye"}}
	pipe, store, artifacts := newTestPipeline(t, engine, fakeRaster{pages: 2})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	pipe.Wait()

	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, []string{"1. Hello", "world\n2. Bye"}, doc.RawTextPages)
	// The question spans the page break; the union line stream joins it.
	require.Len(t, doc.ParsedResult, 2)
	assert.Equal(t, "1", doc.ParsedResult[0].QNo)
	assert.Equal(t, "Hello world", doc.ParsedResult[0].Text)
	assert.Equal(t, "2", doc.ParsedResult[1].QNo)
	assert.Equal(t, "Bye", doc.ParsedResult[1].Text)

	entries := artifacts.List()
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusCompleted, entries[0].Status)
}

func TestPipelineSubmitReturnsBeforeCompletion(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. Quick"}}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)

	// The record exists from the moment Submit returns, whatever its
	// current status.
	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Contains(t, []string{models.StatusProcessing, models.StatusCompleted}, doc.Status)
	pipe.Wait()
}

func TestPipelineAnswerSheetPreprocessed(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"Q6 first\n6 duplicate\nAns 7 next"}}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeAnswerSheet, "fake")
	require.NoError(t, err)
	pipe.Wait()

	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	require.Len(t, doc.ParsedResult, 2)
	assert.Equal(t, "6", doc.ParsedResult[0].QNo)
	assert.Equal(t, "Q6 first", doc.ParsedResult[0].Text)
	assert.Equal(t, "7", doc.ParsedResult[1].QNo)

	require.Len(t, engine.paths, 1)
	assert.True(t, strings.HasSuffix(engine.paths[0], "_processed.png"),
		"handwriting cleanup should run for answer sheets, got %s", engine.paths[0])
}

func TestPipelinePaddleSkipsHandwritingCleanup(t *testing.T) {
	engine := &fakeEngine{name: ocr.EnginePaddle, pageTexts: []string{"Ans 1 from paddle"}}
	pipe, _, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	_, err := pipe.Submit(writeTestUpload(t), models.DocTypeAnswerSheet, ocr.EnginePaddle)
	require.NoError(t, err)
	pipe.Wait()

	require.Len(t, engine.paths, 1)
	assert.False(t, strings.Contains(engine.paths[0], "_processed"),
		"paddle does its own cleanup, got %s", engine.paths[0])
}

func TestPipelineEngineFailureMarksFailed(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. ok", "never reached"}, failPage: 2}
	pipe, store, artifacts := newTestPipeline(t, engine, fakeRaster{pages: 2})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	pipe.Wait()

	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "page 2")
	assert.Empty(t, doc.ParsedResult)
	assert.Empty(t, doc.RawTextPages)

	entries := artifacts.List()
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusFailed, entries[0].Status)
}

func TestPipelineRasterFailureMarksFailed(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{err: errors.New("cannot open document: broken")})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	pipe.Wait()

	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "cannot open document")
	assert.Zero(t, engine.calls, "engine must not run when rasterization fails")
}

func TestPipelineNoMatchesYieldsEmptyParsedResult(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"prose with no numbering"}}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	pipe.Wait()

	doc, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.NotNil(t, doc.ParsedResult)
	assert.Empty(t, doc.ParsedResult)
	assert.Equal(t, []string{"prose with no numbering"}, doc.RawTextPages)
}

func TestPipelineResultFetchIsIdempotent(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. Stable"}}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	id, err := pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	pipe.Wait()

	first, err := store.Get(id)
	require.NoError(t, err)
	second, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPipelineTempPageImagesRemoved(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. a", "2. b", "3. c"}}
	store := newMemoryStore()
	artifacts, err := results.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	uploadDir := t.TempDir()
	pipe := NewPipeline(store, artifacts, fakeEngines{engine}, fakeRaster{pages: 3}, uploadDir, 2, zap.NewNop())

	_, err = pipe.Submit(writeTestUpload(t), models.DocTypeQuestionPaper, "fake")
	require.NoError(t, err)
	pipe.Wait()

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "page images should be cleaned up after the attempt")
}

func TestPipelineConcurrentSubmissions(t *testing.T) {
	engine := &fakeEngine{name: "fake", pageTexts: []string{"1. a"}}
	pipe, store, _ := newTestPipeline(t, engine, fakeRaster{pages: 1})

	upload := writeTestUpload(t)
	ids := make([]string, 8)
	for i := range ids {
		id, err := pipe.Submit(upload, models.DocTypeQuestionPaper, "fake")
		require.NoError(t, err)
		ids[i] = id
	}
	pipe.Wait()

	for _, id := range ids {
		doc, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, doc.Status)
	}
}
