package model

import "time"

// Difficulty labels used by the content banks.
const (
	DifficultyBeginner     = "A1-A2"
	DifficultyIntermediate = "B1-B2"
	DifficultyAdvanced     = "C1-C2"
)

// MCQItem is a grammar multiple-choice item. Correct never leaves the server.
type MCQItem struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Options    []string  `json:"options"`
	Correct    string    `json:"correct"`
	Difficulty string    `json:"difficulty,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListeningQuestion is a sub-question of a listening scenario, addressed by QID.
type ListeningQuestion struct {
	QID     string   `json:"qid"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Correct string   `json:"correct"`
}

// ListeningScenario is a passage with its sub-questions.
type ListeningScenario struct {
	ID         int64               `json:"id"`
	Topic      string              `json:"topic"`
	Passage    string              `json:"passage"`
	Difficulty string              `json:"difficulty,omitempty"`
	Questions  []ListeningQuestion `json:"questions"`
}

// WritingTopic is a free-text writing prompt.
type WritingTopic struct {
	ID    int64  `json:"id"`
	Topic string `json:"topic"`
}

// SpeakingSet is an ordered group of speaking prompts.
type SpeakingSet struct {
	ID      int64    `json:"id"`
	Prompts []string `json:"prompts"`
}

// ContentPools is the full set of banks the generator draws from.
type ContentPools struct {
	MCQ       []MCQItem           `json:"mcq"`
	Listening []ListeningScenario `json:"listening"`
	Writing   []WritingTopic      `json:"writing"`
	Speaking  []SpeakingSet       `json:"speaking"`
}

// CreateMCQRequest is the payload for adding an MCQ item to the bank.
type CreateMCQRequest struct {
	Text       string   `json:"text" binding:"required,max=1000"`
	Options    []string `json:"options" binding:"required,min=2,max=8"`
	Correct    string   `json:"correct" binding:"required,max=500"`
	Difficulty string   `json:"difficulty" binding:"omitempty,oneof=A1-A2 B1-B2 C1-C2"`
}

// ─── Examinee-facing projections (no answer keys) ─────────────────────

// MCQForExaminee is an MCQ item as shown to an examinee.
type MCQForExaminee struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// ListeningQuestionForExaminee is a listening sub-question as shown to an examinee.
type ListeningQuestionForExaminee struct {
	QID     string   `json:"qid"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// ExamPayload is everything an examinee needs to take an attempt.
type ExamPayload struct {
	AttemptID          string                         `json:"attempt_id"`
	MCQItems           []MCQForExaminee               `json:"mcq_items"`
	ListeningTopic     string                         `json:"listening_topic"`
	ListeningPassage   string                         `json:"listening_passage"`
	ListeningQuestions []ListeningQuestionForExaminee `json:"listening_questions"`
	WritingTopic       string                         `json:"writing_topic"`
	SpeakingPrompts    []string                       `json:"speaking_prompts"`
}
