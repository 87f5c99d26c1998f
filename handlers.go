package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"examocr/models"
	"examocr/pkg/results"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.GET("/me", jwtAuthMiddleware(), meHandler)

	api := r.Group("/api")
	if cfg.AuthRequired {
		api.Use(jwtAuthMiddleware())
	}
	api.POST("/upload", uploadDocumentHandler)
	api.GET("/results/:id", getResultsHandler)
	api.GET("/question-papers", listQuestionPapersHandler)
	api.GET("/answer-sheets", listAnswerSheetsHandler)
	api.GET("/saved-results", listSavedResultsHandler)
	api.GET("/saved-results/:name", getSavedResultHandler)
}

// uploadDocumentHandler accepts a document file plus doc_type and
// ocr_engine form fields, queues the attempt, and acknowledges immediately.
// The heavy pipeline runs after the response is sent.
func uploadDocumentHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	docType := c.PostForm("doc_type")
	if !models.ValidDocType(docType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "doc_type must be question_paper or answer_sheet"})
		return
	}
	engineName := c.PostForm("ocr_engine")

	fileLocation := filepath.Join(cfg.UploadDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, fileLocation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	id, err := pipe.Submit(fileLocation, docType, engineName)
	if err != nil {
		logger.Error("failed to queue document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "queued"})
}

// getResultsHandler returns the current status record, including the parsed
// result and raw page text once completed.
func getResultsHandler(c *gin.Context) {
	doc, err := docs.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

type pdfEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// collectPDFEntries scans the PDF directory and splits entries by the
// answer-sheet allow-list.
func collectPDFEntries() (questionFiles, answerFiles []pdfEntry) {
	questionFiles = []pdfEntry{}
	answerFiles = []pdfEntry{}
	entries, err := os.ReadDir(cfg.PDFDir)
	if err != nil {
		return questionFiles, answerFiles
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		entry := pdfEntry{Name: name, URL: "/pdfs/" + name}
		if cfg.isAnswerSheetName(name) {
			answerFiles = append(answerFiles, entry)
		} else {
			questionFiles = append(questionFiles, entry)
		}
	}
	return questionFiles, answerFiles
}

func listQuestionPapersHandler(c *gin.Context) {
	questionFiles, _ := collectPDFEntries()
	c.JSON(http.StatusOK, gin.H{"files": questionFiles})
}

func listAnswerSheetsHandler(c *gin.Context) {
	_, answerFiles := collectPDFEntries()
	c.JSON(http.StatusOK, gin.H{"files": answerFiles})
}

func listSavedResultsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": resultsStore.List()})
}

// getSavedResultHandler serves one artifact's raw JSON. Missing is 404,
// present-but-corrupt is 500.
func getSavedResultHandler(c *gin.Context) {
	data, err := resultsStore.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
