package models

import "time"

// Document type tags accepted at intake.
const (
	DocTypeQuestionPaper = "question_paper"
	DocTypeAnswerSheet   = "answer_sheet"
)

// Processing states. Status moves forward only: processing is set at intake
// and exactly one terminal transition (completed or failed) is written by the
// pipeline.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SubPart is one labelled fragment of a question (e.g. "i", "ii"). The
// answer-sheet grammar never populates these.
type SubPart struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionRecord is one parsed question or answer unit. QNo is not unique
// across malformed question papers; the answer-sheet grammar enforces
// first-seen uniqueness per document.
type QuestionRecord struct {
	QNo      string    `json:"q_no"`
	Text     string    `json:"text"`
	SubParts []SubPart `json:"subparts"`
}

// Document is the status record for one submitted file. ParsedResult and
// RawTextPages are stored as JSON columns; they are only populated by the
// completed transition.
type Document struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt    time.Time `json:"upload_timestamp"`
	UpdatedAt    time.Time `json:"-"`
	Filename     string    `gorm:"size:255;not null" json:"filename"`
	DocType      string    `gorm:"size:32;not null;index" json:"doc_type"`
	OCREngine    string    `gorm:"size:32;not null" json:"ocr_engine"`
	Status       string    `gorm:"size:16;not null;index" json:"status"`
	ParsedResult []QuestionRecord `gorm:"serializer:json" json:"parsed_result,omitempty"`
	RawTextPages []string         `gorm:"serializer:json" json:"raw_text_pages,omitempty"`
	Error        string           `gorm:"size:2048" json:"error,omitempty"`
}

// ValidDocType reports whether t is one of the accepted document type tags.
func ValidDocType(t string) bool {
	return t == DocTypeQuestionPaper || t == DocTypeAnswerSheet
}
