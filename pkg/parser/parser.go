// Package parser converts OCR line output into structured question and
// answer records using two line-oriented grammars.
package parser

import (
	"regexp"
	"strings"

	"examocr/models"
)

var (
	// questionRE matches "1. Some question text".
	questionRE = regexp.MustCompile(`^\s*(\d+)\.\s*(.*)`)
	// answerRE matches "Ans 6", "Q6", "Question 6", or a bare leading "6".
	answerRE = regexp.MustCompile(`(?i)^\s*(?:Ans\s*|Q\s*|Question\s*)?(\d+)`)
)

// ParseQuestionPaper scans lines for numbered-period question starts. Every
// non-matching line is appended, space-joined, to the current question's
// text. Numbering is not validated: duplicate or out-of-order numbers
// produce separate records. No matching lines yields an empty result.
func ParseQuestionPaper(lines []string) []models.QuestionRecord {
	var questions []models.QuestionRecord
	var current *models.QuestionRecord

	for _, line := range lines {
		if m := questionRE.FindStringSubmatch(line); m != nil {
			if current != nil {
				questions = append(questions, *current)
			}
			current = &models.QuestionRecord{QNo: m[1], Text: m[2], SubParts: []models.SubPart{}}
		} else if current != nil {
			current.Text += " " + line
		}
	}
	if current != nil {
		questions = append(questions, *current)
	}
	return questions
}

// ParseAnswerSheet scans lines for answer starts. The first occurrence of a
// question number creates a record holding the full matched line; later
// lines with the same number are ignored. Records come back in first-seen
// order and never carry subparts.
func ParseAnswerSheet(lines []string) []models.QuestionRecord {
	seen := make(map[string]bool)
	var answers []models.QuestionRecord

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := answerRE.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		qNo := m[1]
		if seen[qNo] {
			continue
		}
		seen[qNo] = true
		answers = append(answers, models.QuestionRecord{
			QNo:      qNo,
			Text:     trimmed,
			SubParts: []models.SubPart{},
		})
	}
	return answers
}
