package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreBreakdown is the per-section score of a graded attempt.
type ScoreBreakdown struct {
	Grammar   int `json:"grammar"`
	Listening int `json:"listening"`
	Writing   int `json:"writing"`
	Speaking  int `json:"speaking"`
}

// Total sums the sections.
func (b ScoreBreakdown) Total() int {
	return b.Grammar + b.Listening + b.Writing + b.Speaking
}

// ScoreResult is returned to the examinee after submitting.
type ScoreResult struct {
	AttemptID uuid.UUID      `json:"attempt_id"`
	Total     int            `json:"total"`
	Band      string         `json:"band"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ExamResult is the immutable record written once per submitted attempt.
type ExamResult struct {
	ID         uuid.UUID      `json:"id"`
	AttemptID  uuid.UUID      `json:"attempt_id"`
	ExamineeID string         `json:"examinee_id"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Total      int            `json:"total"`
	Band       string         `json:"band"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ResultStats summarises an examinee's history.
type ResultStats struct {
	TotalExams   int        `json:"total_exams"`
	AverageScore int        `json:"average_score"`
	LastExamAt   *time.Time `json:"last_exam_at,omitempty"`
}

// ResultHistory is the examinee dashboard view.
type ResultHistory struct {
	Stats   ResultStats  `json:"stats"`
	Results []ExamResult `json:"results"`
}
