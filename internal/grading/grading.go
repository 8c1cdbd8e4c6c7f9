// Package grading scores a submission against a server-held answer key.
// Every function here is pure; persistence and logging live in the service layer.
package grading

import (
	"math"
	"strings"

	"github.com/stemsi/proficiency-backend/internal/model"
)

// Section caps and per-item points.
const (
	GrammarPointsPerItem   = 3
	GrammarMax             = 45
	ListeningPointsPerItem = 4
	ListeningMax           = 20
	WritingMax             = 15
	SpeakingMax            = 20

	// MaxTranscriptRunes caps the stored speaking transcript.
	MaxTranscriptRunes = 20000
)

// ScoreGrammar awards points for every submitted MCQ answer that equals the key.
// Ids absent from the key score nothing.
func ScoreGrammar(key map[int64]string, answers map[int64]string) int {
	score := 0
	for id, chosen := range answers {
		if correct, ok := key[id]; ok && chosen == correct {
			score += GrammarPointsPerItem
		}
	}
	return min(score, GrammarMax)
}

// ScoreListening awards points for every listening answer that equals the key.
func ScoreListening(key map[string]string, answers map[string]string) int {
	score := 0
	for qid, chosen := range answers {
		if correct, ok := key[qid]; ok && chosen == correct {
			score += ListeningPointsPerItem
		}
	}
	return min(score, ListeningMax)
}

// WordCount counts whitespace-separated tokens of the trimmed text.
func WordCount(text string) int {
	return len(strings.Fields(strings.TrimSpace(text)))
}

// ScoreWriting maps the word count onto the writing bands.
func ScoreWriting(text string) int {
	n := WordCount(text)
	switch {
	case n == 0:
		return 0
	case n <= 20:
		return 5
	case n <= 50:
		return 10
	default:
		return WritingMax
	}
}

// ScoreSpeaking clamps the external scorer's value to [0, SpeakingMax] and
// rounds it. clamped reports whether the raw value was out of range.
func ScoreSpeaking(raw float64) (score int, clamped bool) {
	if math.IsNaN(raw) {
		return 0, true
	}
	v := raw
	if v < 0 {
		v, clamped = 0, true
	} else if v > SpeakingMax {
		v, clamped = SpeakingMax, true
	}
	return int(math.Round(v)), clamped
}

// ClampTranscript cuts an external speech-to-text transcript to
// MaxTranscriptRunes on a rune boundary. truncated reports whether it was cut.
func ClampTranscript(text string) (clamped string, truncated bool) {
	if len(text) <= MaxTranscriptRunes {
		return text, false
	}
	n := 0
	for i := range text {
		if n == MaxTranscriptRunes {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// Outcome is the result of Evaluate.
type Outcome struct {
	Breakdown       model.ScoreBreakdown
	Total           int
	Band            Band
	SpeakingClamped bool
}

// Evaluate scores a full submission. The caller guarantees key came from the
// examinee's active pointer.
func Evaluate(key model.AnswerKey, sub model.SubmissionSnapshot) Outcome {
	speaking, clamped := ScoreSpeaking(sub.SpeakingScore)
	b := model.ScoreBreakdown{
		Grammar:   ScoreGrammar(key.MCQ, sub.MCQAnswers),
		Listening: ScoreListening(key.Listening, sub.ListeningAnswers),
		Writing:   ScoreWriting(sub.WritingText),
		Speaking:  speaking,
	}
	total := b.Total()
	return Outcome{
		Breakdown:       b,
		Total:           total,
		Band:            BandFor(total),
		SpeakingClamped: clamped,
	}
}
