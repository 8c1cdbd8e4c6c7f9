package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
)

// Attempt is one sitting of the exam by an examinee. Rows are transitioned, never deleted.
type Attempt struct {
	ID                  uuid.UUID           `json:"id"`
	ExamineeID          string              `json:"examinee_id"`
	Status              AttemptStatus       `json:"status"`
	CreatedAt           time.Time           `json:"created_at"`
	SubmittedAt         *time.Time          `json:"submitted_at,omitempty"`
	MCQItemIDs          []int64             `json:"mcq_item_ids"`
	ListeningScenarioID int64               `json:"listening_scenario_id"`
	WritingTopicID      int64               `json:"writing_topic_id"`
	SpeakingSetID       int64               `json:"speaking_set_id"`
	Submission          *SubmissionSnapshot `json:"submission,omitempty"`
}

// AttemptSummary is the slice of an attempt embedded in cheating event listings.
type AttemptSummary struct {
	ID          uuid.UUID     `json:"id"`
	Status      AttemptStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// AnswerKey maps item ids to the correct option. It is server-only.
type AnswerKey struct {
	MCQ       map[int64]string  `json:"mcq"`
	Listening map[string]string `json:"listening"`
}

// ActivePointer marks the single IN_PROGRESS attempt of an examinee and owns its answer key.
type ActivePointer struct {
	ExamineeID string    `json:"examinee_id"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	Key        AnswerKey `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmissionSnapshot is what the examinee handed in, stored on the attempt.
type SubmissionSnapshot struct {
	MCQAnswers         map[int64]string  `json:"mcq_answers"`
	ListeningAnswers   map[string]string `json:"listening_answers"`
	WritingText        string            `json:"writing_text"`
	SpeakingTranscript string            `json:"speaking_transcript"`
	SpeakingScore      float64           `json:"speaking_score"`
}

// SubmitAttemptRequest carries chosen answers only. Anything else a client
// sends (e.g. a "correct" flag) has no field to bind to and is dropped.
type SubmitAttemptRequest struct {
	MCQAnswers         map[int64]string  `json:"mcq_answers" binding:"omitempty,max=100,dive,max=500"`
	ListeningAnswers   map[string]string `json:"listening_answers" binding:"omitempty,max=50,dive,keys,max=64,endkeys,max=500"`
	WritingText        string            `json:"writing_text" binding:"max=20000"`
	SpeakingTranscript string            `json:"speaking_transcript"`
	SpeakingScore      *float64          `json:"speaking_score"`
}

// Snapshot converts the request into the stored form.
func (r SubmitAttemptRequest) Snapshot() SubmissionSnapshot {
	s := SubmissionSnapshot{
		MCQAnswers:         r.MCQAnswers,
		ListeningAnswers:   r.ListeningAnswers,
		WritingText:        r.WritingText,
		SpeakingTranscript: r.SpeakingTranscript,
	}
	if s.MCQAnswers == nil {
		s.MCQAnswers = map[int64]string{}
	}
	if s.ListeningAnswers == nil {
		s.ListeningAnswers = map[string]string{}
	}
	if r.SpeakingScore != nil {
		s.SpeakingScore = *r.SpeakingScore
	}
	return s
}
