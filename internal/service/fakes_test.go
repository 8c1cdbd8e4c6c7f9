package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/repository"
)

var testLog = zerolog.New(io.Discard)

// ─── Attempt store ──────────────────────────────────────────────────

type memState struct {
	attempts map[uuid.UUID]model.Attempt
	pointers map[string]model.ActivePointer
	results  []model.ExamResult
}

func (s memState) clone() memState {
	c := memState{
		attempts: make(map[uuid.UUID]model.Attempt, len(s.attempts)),
		pointers: make(map[string]model.ActivePointer, len(s.pointers)),
		results:  append([]model.ExamResult(nil), s.results...),
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.pointers {
		c.pointers[k] = v
	}
	return c
}

// fakeAttemptStore mimics the Postgres store: the mutex stands in for the
// advisory lock, each transaction works on a copy that replaces the state
// only on success, and the unique indexes surface as ErrDuplicate.
type fakeAttemptStore struct {
	mu    sync.Mutex
	state memState
	clock time.Time

	// Fault injection: the named step fails with failErr failTimes times.
	failStep  string
	failErr   error
	failTimes int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		state: memState{
			attempts: map[uuid.UUID]model.Attempt{},
			pointers: map[string]model.ActivePointer{},
		},
		clock: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeAttemptStore) failAt(step string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStep, s.failErr, s.failTimes = step, err, times
}

func (s *fakeAttemptStore) WithinExamineeTx(ctx context.Context, examineeID string, fn func(tx repository.AttemptTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *fakeAttemptStore) GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.pointers[examineeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *fakeAttemptStore) ListAttempts(ctx context.Context, examineeID string, limit, offset int) ([]model.Attempt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Attempt
	for _, a := range s.state.attempts {
		if a.ExamineeID == examineeID {
			all = append(all, a)
		}
	}
	total := len(all)
	if offset >= total {
		return []model.Attempt{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *fakeAttemptStore) ListResults(ctx context.Context, examineeID string, limit int) ([]model.ExamResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExamResult
	for i := len(s.state.results) - 1; i >= 0 && len(out) < limit; i-- {
		if r := s.state.results[i]; r.ExamineeID == examineeID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Inspection helpers. Callers must not hold s.mu.

func (s *fakeAttemptStore) attemptsOf(examineeID string) map[model.AttemptStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[model.AttemptStatus]int{}
	for _, a := range s.state.attempts {
		if a.ExamineeID == examineeID {
			counts[a.Status]++
		}
	}
	return counts
}

func (s *fakeAttemptStore) attempt(id uuid.UUID) (model.Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.attempts[id]
	return a, ok
}

func (s *fakeAttemptStore) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.results)
}

// checkSinglePointer verifies that the examinee has at most one IN_PROGRESS
// attempt and that the pointer, if any, names it.
func (s *fakeAttemptStore) checkSinglePointer(examineeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inProgress []uuid.UUID
	for id, a := range s.state.attempts {
		if a.ExamineeID == examineeID && a.Status == model.AttemptStatusInProgress {
			inProgress = append(inProgress, id)
		}
	}
	p, hasPointer := s.state.pointers[examineeID]
	switch {
	case len(inProgress) > 1:
		return fmt.Errorf("%d attempts in progress", len(inProgress))
	case len(inProgress) == 1 && !hasPointer:
		return errors.New("in-progress attempt without pointer")
	case len(inProgress) == 0 && hasPointer:
		return errors.New("pointer without in-progress attempt")
	case hasPointer && p.AttemptID != inProgress[0]:
		return errors.New("pointer names the wrong attempt")
	}
	return nil
}

type fakeTx struct {
	store *fakeAttemptStore
	state memState
}

// inject is called with s.mu held by WithinExamineeTx.
func (t *fakeTx) inject(step string) error {
	s := t.store
	if s.failStep == step && s.failTimes > 0 {
		s.failTimes--
		return s.failErr
	}
	return nil
}

func (t *fakeTx) GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error) {
	if err := t.inject("get_pointer"); err != nil {
		return nil, err
	}
	p, ok := t.state.pointers[examineeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (t *fakeTx) SetAttemptStatus(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	if err := t.inject("set_status"); err != nil {
		return err
	}
	a, ok := t.state.attempts[attemptID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	t.state.attempts[attemptID] = a
	return nil
}

func (t *fakeTx) DeleteActivePointer(ctx context.Context, examineeID string) error {
	if err := t.inject("delete_pointer"); err != nil {
		return err
	}
	delete(t.state.pointers, examineeID)
	return nil
}

func (t *fakeTx) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	if err := t.inject("create_attempt"); err != nil {
		return err
	}
	for _, existing := range t.state.attempts {
		if existing.ExamineeID == a.ExamineeID && existing.Status == model.AttemptStatusInProgress {
			return repository.ErrDuplicate
		}
	}
	a.CreatedAt = t.store.clock
	t.state.attempts[a.ID] = *a
	return nil
}

func (t *fakeTx) CreateActivePointer(ctx context.Context, p *model.ActivePointer) error {
	if err := t.inject("create_pointer"); err != nil {
		return err
	}
	if _, ok := t.state.pointers[p.ExamineeID]; ok {
		return repository.ErrDuplicate
	}
	p.CreatedAt = t.store.clock
	t.state.pointers[p.ExamineeID] = *p
	return nil
}

func (t *fakeTx) CreateResult(ctx context.Context, res *model.ExamResult) error {
	if err := t.inject("create_result"); err != nil {
		return err
	}
	for _, r := range t.state.results {
		if r.AttemptID == res.AttemptID {
			return repository.ErrDuplicate
		}
	}
	t.store.clock = t.store.clock.Add(time.Minute)
	res.CreatedAt = t.store.clock
	t.state.results = append(t.state.results, *res)
	return nil
}

func (t *fakeTx) MarkSubmitted(ctx context.Context, attemptID uuid.UUID, sub model.SubmissionSnapshot, at time.Time) error {
	if err := t.inject("mark_submitted"); err != nil {
		return err
	}
	a, ok := t.state.attempts[attemptID]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return repository.ErrNotFound
	}
	a.Status = model.AttemptStatusSubmitted
	a.SubmittedAt = &at
	a.Submission = &sub
	t.state.attempts[attemptID] = a
	return nil
}

// ─── Content ────────────────────────────────────────────────────────

type fakePools struct {
	pools *model.ContentPools
	err   error
}

func (f fakePools) Pools(ctx context.Context) (*model.ContentPools, error) {
	return f.pools, f.err
}

// testPools returns 20 MCQ items with ids 1..20 whose correct option is
// "right-<id>", two listening scenarios of five questions, and two writing
// topics and speaking sets.
func testPools() *model.ContentPools {
	p := &model.ContentPools{}
	for id := int64(1); id <= 20; id++ {
		right := fmt.Sprintf("right-%d", id)
		p.MCQ = append(p.MCQ, model.MCQItem{
			ID:      id,
			Text:    fmt.Sprintf("Question %d", id),
			Options: []string{"wrong-a", right, "wrong-b", "wrong-c"},
			Correct: right,
		})
	}
	for sid := int64(1); sid <= 2; sid++ {
		s := model.ListeningScenario{
			ID:      sid,
			Topic:   fmt.Sprintf("Topic %d", sid),
			Passage: "A short passage.",
		}
		for q := 1; q <= 5; q++ {
			right := fmt.Sprintf("s%d-q%d", sid, q)
			s.Questions = append(s.Questions, model.ListeningQuestion{
				QID:     fmt.Sprintf("L%d", q),
				Text:    fmt.Sprintf("Listening %d", q),
				Options: []string{right, "other"},
				Correct: right,
			})
		}
		p.Listening = append(p.Listening, s)
	}
	p.Writing = []model.WritingTopic{{ID: 1, Topic: "Cities"}, {ID: 2, Topic: "Travel"}}
	p.Speaking = []model.SpeakingSet{
		{ID: 1, Prompts: []string{"a", "b", "c"}},
		{ID: 2, Prompts: []string{"d", "e", "f"}},
	}
	return p
}

// ─── Integrity ──────────────────────────────────────────────────────

type fakeEventStore struct {
	mu     sync.Mutex
	events []model.CheatingEvent
	err    error
}

func (f *fakeEventStore) Insert(ctx context.Context, e *model.CheatingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEventStore) ListByExaminee(ctx context.Context, examineeID string, take, skip int) ([]model.CheatingEventWithAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CheatingEventWithAttempt
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].ExamineeID == examineeID {
			out = append(out, model.CheatingEventWithAttempt{CheatingEvent: f.events[i]})
		}
	}
	if skip >= len(out) {
		return nil, nil
	}
	return out[skip:min(skip+take, len(out))], nil
}

func (f *fakeEventStore) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu     sync.Mutex
	events []model.CheatingEvent
	err    error
}

func (q *fakeQueue) Enqueue(ctx context.Context, e *model.CheatingEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, *e)
	return nil
}

// staticLookup resolves every examinee to one attempt, or to err.
type staticLookup struct {
	id  uuid.UUID
	err error
}

func (l staticLookup) ActiveAttempt(ctx context.Context, examineeID string) (uuid.UUID, error) {
	return l.id, l.err
}
