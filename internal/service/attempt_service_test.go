package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stemsi/proficiency-backend/internal/grading"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/repository"
)

const examinee = "examinee-1"

func newTestAttemptService(store AttemptStore, pools PoolSource) *AttemptService {
	return NewAttemptService(store, pools, NewGenerator(42), testLog)
}

// correctAnswers answers every item of payload correctly. Listening options
// in testPools put the correct value first.
func correctAnswers(payload *model.ExamPayload) model.SubmitAttemptRequest {
	req := model.SubmitAttemptRequest{
		MCQAnswers:       map[int64]string{},
		ListeningAnswers: map[string]string{},
	}
	for _, m := range payload.MCQItems {
		req.MCQAnswers[m.ID] = fmt.Sprintf("right-%d", m.ID)
	}
	for _, q := range payload.ListeningQuestions {
		req.ListeningAnswers[q.QID] = q.Options[0]
	}
	return req
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func speaking(v float64) *float64 { return &v }

// findKey reports whether any object key in the decoded JSON value contains needle.
func findKey(v any, needle string) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if strings.Contains(strings.ToLower(k), needle) || findKey(child, needle) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if findKey(child, needle) {
				return true
			}
		}
	}
	return false
}

func TestGenerate_PayloadCarriesNoAnswerKey(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})

	payload, err := svc.Generate(context.Background(), examinee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if findKey(decoded, "correct") {
		t.Fatalf("payload exposes an answer key: %s", raw)
	}

	if len(payload.MCQItems) != DefaultMCQCount {
		t.Errorf("mcq items = %d, want %d", len(payload.MCQItems), DefaultMCQCount)
	}
	if len(payload.ListeningQuestions) != 5 {
		t.Errorf("listening questions = %d, want 5", len(payload.ListeningQuestions))
	}
	if len(payload.SpeakingPrompts) != 3 || payload.WritingTopic == "" {
		t.Errorf("incomplete payload: %+v", payload)
	}

	id := uuid.MustParse(payload.AttemptID)
	ptr, err := store.GetActivePointer(context.Background(), examinee)
	if err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if ptr.AttemptID != id {
		t.Errorf("pointer attempt = %s, want %s", ptr.AttemptID, id)
	}
	for _, m := range payload.MCQItems {
		if ptr.Key.MCQ[m.ID] != fmt.Sprintf("right-%d", m.ID) {
			t.Errorf("key for mcq %d = %q", m.ID, ptr.Key.MCQ[m.ID])
		}
	}
	if len(ptr.Key.Listening) != 5 {
		t.Errorf("listening key entries = %d, want 5", len(ptr.Key.Listening))
	}
}

func TestGenerate_RegenerateAbandonsPrevious(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	first, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.AttemptID == second.AttemptID {
		t.Fatal("regenerate reused the attempt id")
	}

	a, _ := store.attempt(uuid.MustParse(first.AttemptID))
	if a.Status != model.AttemptStatusAbandoned {
		t.Errorf("first attempt status = %s, want ABANDONED", a.Status)
	}
	b, _ := store.attempt(uuid.MustParse(second.AttemptID))
	if b.Status != model.AttemptStatusInProgress {
		t.Errorf("second attempt status = %s, want IN_PROGRESS", b.Status)
	}
	if err := store.checkSinglePointer(examinee); err != nil {
		t.Fatal(err)
	}
}

func TestSubmit_GradesAgainstStoredKey(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	payload, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := correctAnswers(payload)
	req.WritingText = words(60)
	req.SpeakingScore = speaking(18)

	res, err := svc.Submit(ctx, examinee, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := model.ScoreBreakdown{Grammar: 45, Listening: 20, Writing: 15, Speaking: 18}
	if res.Breakdown != want {
		t.Errorf("breakdown = %+v, want %+v", res.Breakdown, want)
	}
	if res.Total != 98 || res.Band != "C2" {
		t.Errorf("total/band = %d/%s, want 98/C2", res.Total, res.Band)
	}

	a, _ := store.attempt(res.AttemptID)
	if a.Status != model.AttemptStatusSubmitted || a.SubmittedAt == nil || a.Submission == nil {
		t.Errorf("attempt not marked submitted: %+v", a)
	}
	if _, err := store.GetActivePointer(ctx, examinee); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("pointer still present after submit: %v", err)
	}
	if store.resultCount() != 1 {
		t.Errorf("results = %d, want 1", store.resultCount())
	}
}

func TestSubmit_WrongAndUnknownAnswersScoreNothing(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	if _, err := svc.Generate(ctx, examinee); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	res, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{
		MCQAnswers:       map[int64]string{999: "right-999", 1: "wrong-a"},
		ListeningAnswers: map[string]string{"L9": "x"},
		WritingText:      words(10),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Total != 5 || res.Band != "A1" {
		t.Errorf("total/band = %d/%s, want 5/A1", res.Total, res.Band)
	}
}

func TestSubmit_ClampsSpeakingScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{35, 20},
		{-4, 0},
		{12.5, 13},
		{19.4, 19},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.raw), func(t *testing.T) {
			store := newFakeAttemptStore()
			svc := newTestAttemptService(store, fakePools{pools: testPools()})
			ctx := context.Background()
			if _, err := svc.Generate(ctx, examinee); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			res, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{SpeakingScore: speaking(tt.raw)})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if res.Breakdown.Speaking != tt.want {
				t.Errorf("speaking = %d, want %d", res.Breakdown.Speaking, tt.want)
			}
		})
	}
}

func TestSubmit_LongTranscriptIsTruncatedNotRejected(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	payload, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	req := correctAnswers(payload)
	req.WritingText = words(60)
	req.SpeakingTranscript = strings.Repeat("a ", 10001) + "ü"
	req.SpeakingScore = speaking(15)

	res, err := svc.Submit(ctx, examinee, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Total != 95 {
		t.Errorf("total = %d, want 95", res.Total)
	}

	a, _ := store.attempt(res.AttemptID)
	if a.Status != model.AttemptStatusSubmitted || a.Submission == nil {
		t.Fatalf("attempt not submitted: %+v", a)
	}
	stored := a.Submission.SpeakingTranscript
	if n := utf8.RuneCountInString(stored); n != grading.MaxTranscriptRunes {
		t.Errorf("stored transcript runes = %d, want %d", n, grading.MaxTranscriptRunes)
	}
	if !utf8.ValidString(stored) {
		t.Error("stored transcript is not valid UTF-8")
	}
}

func TestSubmit_NoActiveAttempt(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})

	_, err := svc.Submit(context.Background(), examinee, model.SubmitAttemptRequest{})
	if !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("err = %v, want ErrNoActiveAttempt", err)
	}
	if store.resultCount() != 0 {
		t.Errorf("results = %d, want 0", store.resultCount())
	}
}

func TestSubmit_SecondSubmitRejected(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	if _, err := svc.Generate(ctx, examinee); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{}); !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("second Submit err = %v, want ErrNoActiveAttempt", err)
	}
	if store.resultCount() != 1 {
		t.Errorf("results = %d, want 1", store.resultCount())
	}
}

func TestSubmit_AfterRegenerateUsesNewKey(t *testing.T) {
	store := newFakeAttemptStore()
	pools := testPools()
	svc := newTestAttemptService(store, fakePools{pools: pools})
	ctx := context.Background()

	first, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	res, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{
		ListeningAnswers: correctAnswers(first).ListeningAnswers,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.AttemptID.String() != second.AttemptID {
		t.Errorf("graded attempt = %s, want %s", res.AttemptID, second.AttemptID)
	}

	want := 0
	secondKey := correctAnswers(second).ListeningAnswers
	for qid, v := range correctAnswers(first).ListeningAnswers {
		if secondKey[qid] == v {
			want += 4
		}
	}
	if res.Breakdown.Listening != want {
		t.Errorf("listening = %d, want %d", res.Breakdown.Listening, want)
	}
}

func TestGenerate_StoreFailureRollsBack(t *testing.T) {
	steps := []string{"get_pointer", "set_status", "delete_pointer", "create_attempt", "create_pointer"}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			store := newFakeAttemptStore()
			svc := newTestAttemptService(store, fakePools{pools: testPools()})
			ctx := context.Background()

			prev, err := svc.Generate(ctx, examinee)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			boom := errors.New("connection reset")
			store.failAt(step, boom, 1)
			if _, err := svc.Generate(ctx, examinee); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}

			counts := store.attemptsOf(examinee)
			if counts[model.AttemptStatusInProgress] != 1 || counts[model.AttemptStatusAbandoned] != 0 {
				t.Errorf("attempt counts after rollback = %v", counts)
			}
			ptr, err := store.GetActivePointer(ctx, examinee)
			if err != nil || ptr.AttemptID.String() != prev.AttemptID {
				t.Errorf("pointer after rollback = %+v, %v", ptr, err)
			}
		})
	}
}

func TestSubmit_StoreFailureRollsBack(t *testing.T) {
	steps := []string{"create_result", "mark_submitted", "delete_pointer"}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			store := newFakeAttemptStore()
			svc := newTestAttemptService(store, fakePools{pools: testPools()})
			ctx := context.Background()

			payload, err := svc.Generate(ctx, examinee)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			boom := errors.New("disk full")
			store.failAt(step, boom, 1)
			if _, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{}); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}
			if store.resultCount() != 0 {
				t.Errorf("results after rollback = %d, want 0", store.resultCount())
			}
			a, _ := store.attempt(uuid.MustParse(payload.AttemptID))
			if a.Status != model.AttemptStatusInProgress {
				t.Errorf("status after rollback = %s, want IN_PROGRESS", a.Status)
			}

			// The attempt stays submittable.
			if _, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{}); err != nil {
				t.Fatalf("retry Submit: %v", err)
			}
			if store.resultCount() != 1 {
				t.Errorf("results after retry = %d, want 1", store.resultCount())
			}
		})
	}
}

func TestGenerate_RetriesUniquenessConflict(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})

	store.failAt("create_attempt", repository.ErrDuplicate, maxLifecycleRetries)
	if _, err := svc.Generate(context.Background(), examinee); err != nil {
		t.Fatalf("Generate should recover after %d conflicts: %v", maxLifecycleRetries, err)
	}
	if err := store.checkSinglePointer(examinee); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_SurfacesPersistentConflict(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})

	store.failAt("create_pointer", repository.ErrDuplicate, maxLifecycleRetries+1)
	_, err := svc.Generate(context.Background(), examinee)
	if !errors.Is(err, ErrAttemptConflict) {
		t.Fatalf("err = %v, want ErrAttemptConflict", err)
	}
	if counts := store.attemptsOf(examinee); len(counts) != 0 {
		t.Errorf("attempts stored despite conflict: %v", counts)
	}
}

func TestGenerate_ConcurrentKeepsSingleAttempt(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Generate(context.Background(), examinee); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Generate: %v", err)
	}

	counts := store.attemptsOf(examinee)
	if counts[model.AttemptStatusInProgress] != 1 || counts[model.AttemptStatusAbandoned] != n-1 {
		t.Errorf("attempt counts = %v, want 1 in progress and %d abandoned", counts, n-1)
	}
	if err := store.checkSinglePointer(examinee); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_ConcurrentWithSubmit(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	if _, err := svc.Generate(ctx, examinee); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Generate(ctx, examinee)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{})
			if err != nil && !errors.Is(err, ErrNoActiveAttempt) {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := store.checkSinglePointer(examinee); err != nil {
		t.Fatal(err)
	}
	counts := store.attemptsOf(examinee)
	if counts[model.AttemptStatusSubmitted] != store.resultCount() {
		t.Errorf("submitted = %d, results = %d", counts[model.AttemptStatusSubmitted], store.resultCount())
	}
}

func TestGenerate_EmptyPool(t *testing.T) {
	pools := testPools()
	pools.Speaking = nil
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: pools})

	_, err := svc.Generate(context.Background(), examinee)
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("err = %v, want ErrContentUnavailable", err)
	}
	if counts := store.attemptsOf(examinee); len(counts) != 0 {
		t.Errorf("attempts stored for an empty pool: %v", counts)
	}
}

func TestGenerate_PoolSourceError(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestAttemptService(newFakeAttemptStore(), fakePools{err: boom})
	if _, err := svc.Generate(context.Background(), examinee); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestActiveAttempt(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	if _, err := svc.ActiveAttempt(ctx, examinee); !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("err = %v, want ErrNoActiveAttempt", err)
	}
	payload, err := svc.Generate(ctx, examinee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id, err := svc.ActiveAttempt(ctx, examinee)
	if err != nil || id.String() != payload.AttemptID {
		t.Errorf("ActiveAttempt = %s, %v; want %s", id, err, payload.AttemptID)
	}
}

func TestListAttempts_ClampsPaging(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Generate(ctx, examinee); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}

	attempts, page, err := svc.ListAttempts(ctx, examinee, 0, 500)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if page.Page != 1 || page.PerPage != 100 || page.TotalItems != 3 {
		t.Errorf("pagination = %+v", page)
	}
	if len(attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(attempts))
	}

	attempts, _, err = svc.ListAttempts(ctx, examinee, 2, 2)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("second page = %d attempts, want 1", len(attempts))
	}
}

func TestHistory(t *testing.T) {
	store := newFakeAttemptStore()
	svc := newTestAttemptService(store, fakePools{pools: testPools()})
	ctx := context.Background()

	scores := []float64{10, 15}
	for _, s := range scores {
		if _, err := svc.Generate(ctx, examinee); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if _, err := svc.Submit(ctx, examinee, model.SubmitAttemptRequest{SpeakingScore: speaking(s)}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	h, err := svc.History(ctx, examinee)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.Stats.TotalExams != 2 || h.Stats.AverageScore != 12 {
		t.Errorf("stats = %+v, want 2 exams averaging 12", h.Stats)
	}
	if len(h.Results) != 2 || h.Results[0].Total != 15 {
		t.Fatalf("results not newest first: %+v", h.Results)
	}
	if h.Stats.LastExamAt == nil || !h.Stats.LastExamAt.Equal(h.Results[0].CreatedAt) {
		t.Errorf("last exam at = %v, want %v", h.Stats.LastExamAt, h.Results[0].CreatedAt)
	}
}

func TestSummarizeResults_Empty(t *testing.T) {
	stats := SummarizeResults(nil)
	if stats.TotalExams != 0 || stats.AverageScore != 0 || stats.LastExamAt != nil {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestSummarizeResults_FloorsMean(t *testing.T) {
	stats := SummarizeResults([]model.ExamResult{{Total: 50}, {Total: 51}, {Total: 51}})
	if stats.AverageScore != 50 {
		t.Errorf("average = %d, want 50", stats.AverageScore)
	}
}
