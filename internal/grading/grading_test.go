package grading

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stemsi/proficiency-backend/internal/model"
)

func fullKey() model.AnswerKey {
	key := model.AnswerKey{MCQ: map[int64]string{}, Listening: map[string]string{}}
	for i := int64(1); i <= 15; i++ {
		key.MCQ[i] = "right"
	}
	for _, qid := range []string{"L1", "L2", "L3", "L4", "L5"} {
		key.Listening[qid] = "yes"
	}
	return key
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func perfectSubmission() model.SubmissionSnapshot {
	sub := model.SubmissionSnapshot{
		MCQAnswers:       map[int64]string{},
		ListeningAnswers: map[string]string{},
		WritingText:      words(60),
		SpeakingScore:    20,
	}
	for i := int64(1); i <= 15; i++ {
		sub.MCQAnswers[i] = "right"
	}
	for _, qid := range []string{"L1", "L2", "L3", "L4", "L5"} {
		sub.ListeningAnswers[qid] = "yes"
	}
	return sub
}

func TestEvaluate_PerfectScoreIsC2(t *testing.T) {
	out := Evaluate(fullKey(), perfectSubmission())

	want := model.ScoreBreakdown{Grammar: 45, Listening: 20, Writing: 15, Speaking: 20}
	if out.Breakdown != want {
		t.Fatalf("breakdown = %+v, want %+v", out.Breakdown, want)
	}
	if out.Total != 100 {
		t.Errorf("total = %d, want 100", out.Total)
	}
	if out.Band != BandC2 {
		t.Errorf("band = %s, want C2", out.Band)
	}
	if out.SpeakingClamped {
		t.Error("speaking 20 should not be reported as clamped")
	}
}

func TestEvaluate_EmptyWritingScoresZero(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		sub := perfectSubmission()
		sub.WritingText = text
		out := Evaluate(fullKey(), sub)
		if out.Breakdown.Writing != 0 {
			t.Errorf("writing(%q) = %d, want 0", text, out.Breakdown.Writing)
		}
		if out.Breakdown.Grammar != 45 || out.Breakdown.Listening != 20 || out.Breakdown.Speaking != 20 {
			t.Errorf("other sections changed: %+v", out.Breakdown)
		}
	}
}

func TestEvaluate_SpeakingOutOfRangeIsClamped(t *testing.T) {
	sub := perfectSubmission()
	sub.SpeakingScore = 999
	out := Evaluate(fullKey(), sub)
	if out.Breakdown.Speaking != 20 {
		t.Errorf("speaking = %d, want 20", out.Breakdown.Speaking)
	}
	if !out.SpeakingClamped {
		t.Error("expected SpeakingClamped")
	}
}

func TestScoreSpeaking(t *testing.T) {
	tests := []struct {
		raw         float64
		want        int
		wantClamped bool
	}{
		{0, 0, false},
		{12.4, 12, false},
		{12.5, 13, false},
		{20, 20, false},
		{20.1, 20, true},
		{-3, 0, true},
		{999, 20, true},
	}
	for _, tt := range tests {
		got, clamped := ScoreSpeaking(tt.raw)
		if got != tt.want || clamped != tt.wantClamped {
			t.Errorf("ScoreSpeaking(%v) = (%d, %v), want (%d, %v)", tt.raw, got, clamped, tt.want, tt.wantClamped)
		}
	}
}

func TestScoreWriting_Boundaries(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 0},
		{1, 5},
		{20, 5},
		{21, 10},
		{50, 10},
		{51, 15},
		{500, 15},
	}
	for _, tt := range tests {
		if got := ScoreWriting(words(tt.words)); got != tt.want {
			t.Errorf("ScoreWriting(%d words) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestWordCount_CollapsesWhitespace(t *testing.T) {
	if got := WordCount("  one\ttwo\n\nthree   four "); got != 4 {
		t.Errorf("WordCount = %d, want 4", got)
	}
}

func TestScoreGrammar_IgnoresUnknownIDs(t *testing.T) {
	key := map[int64]string{1: "a", 2: "b"}
	answers := map[int64]string{1: "a", 2: "x", 99: "a", 100: "b"}
	if got := ScoreGrammar(key, answers); got != 3 {
		t.Errorf("ScoreGrammar = %d, want 3", got)
	}
}

func TestScoreGrammar_ClampsAtMax(t *testing.T) {
	// A key larger than an exam would carry still cannot push past the cap.
	key := map[int64]string{}
	answers := map[int64]string{}
	for i := int64(1); i <= 30; i++ {
		key[i] = "ok"
		answers[i] = "ok"
	}
	if got := ScoreGrammar(key, answers); got != GrammarMax {
		t.Errorf("ScoreGrammar = %d, want %d", got, GrammarMax)
	}
}

func TestScoreListening_ClampsAtMax(t *testing.T) {
	key := map[string]string{}
	answers := map[string]string{}
	for _, q := range []string{"L1", "L2", "L3", "L4", "L5", "L6", "L7"} {
		key[q] = "x"
		answers[q] = "x"
	}
	if got := ScoreListening(key, answers); got != ListeningMax {
		t.Errorf("ScoreListening = %d, want %d", got, ListeningMax)
	}
}

func TestEvaluate_SectionCapsHold(t *testing.T) {
	key := model.AnswerKey{MCQ: map[int64]string{}, Listening: map[string]string{}}
	sub := model.SubmissionSnapshot{MCQAnswers: map[int64]string{}, ListeningAnswers: map[string]string{}}
	for i := int64(1); i <= 40; i++ {
		key.MCQ[i] = "k"
		sub.MCQAnswers[i] = "k"
	}
	for i := 0; i < 12; i++ {
		q := string(rune('a' + i))
		key.Listening[q] = "k"
		sub.ListeningAnswers[q] = "k"
	}
	for _, speaking := range []float64{-100, 0, 7.7, 20, 21, 1e9} {
		for _, n := range []int{0, 10, 30, 1000} {
			sub.SpeakingScore = speaking
			sub.WritingText = words(n)
			out := Evaluate(key, sub)
			b := out.Breakdown
			if b.Grammar > GrammarMax || b.Listening > ListeningMax || b.Writing > WritingMax || b.Speaking > SpeakingMax {
				t.Fatalf("section over cap: %+v", b)
			}
			if b.Speaking < 0 {
				t.Fatalf("negative speaking: %+v", b)
			}
			if out.Total > 100 || out.Total < 0 {
				t.Fatalf("total out of range: %d", out.Total)
			}
		}
	}
}

func TestBandFor_Boundaries(t *testing.T) {
	tests := []struct {
		total int
		want  Band
	}{
		{0, BandA1},
		{29, BandA1},
		{30, BandA2},
		{44, BandA2},
		{45, BandB1},
		{59, BandB1},
		{60, BandB2},
		{74, BandB2},
		{75, BandC1},
		{89, BandC1},
		{90, BandC2},
		{100, BandC2},
	}
	for _, tt := range tests {
		if got := BandFor(tt.total); got != tt.want {
			t.Errorf("BandFor(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestBandFor_Monotonic(t *testing.T) {
	prev := BandFor(0).Rank()
	for total := 1; total <= 100; total++ {
		r := BandFor(total).Rank()
		if r < prev {
			t.Fatalf("BandFor(%d) rank %d < BandFor(%d) rank %d", total, r, total-1, prev)
		}
		prev = r
	}
}

func TestClampTranscript(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantRunes     int
		wantTruncated bool
	}{
		{"short", "hello there", 11, false},
		{"ascii at cap", strings.Repeat("a", MaxTranscriptRunes), MaxTranscriptRunes, false},
		{"ascii over cap", strings.Repeat("a ", 10001), MaxTranscriptRunes, true},
		{"multibyte at cap", strings.Repeat("é", MaxTranscriptRunes), MaxTranscriptRunes, false},
		{"multibyte over cap", strings.Repeat("日本", MaxTranscriptRunes), MaxTranscriptRunes, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := ClampTranscript(tt.text)
			if truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
			if n := utf8.RuneCountInString(got); n != tt.wantRunes {
				t.Errorf("runes = %d, want %d", n, tt.wantRunes)
			}
			if !utf8.ValidString(got) {
				t.Error("result is not valid UTF-8")
			}
			if !strings.HasPrefix(tt.text, got) {
				t.Error("result is not a prefix of the input")
			}
		})
	}
}
