package service

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/proficiency-backend/internal/model"
)

// DefaultMCQCount is how many grammar items an exam carries.
const DefaultMCQCount = 15

// Assembly is a generated exam before it is bound to an attempt.
type Assembly struct {
	MCQ       []model.MCQItem
	Listening model.ListeningScenario
	Writing   model.WritingTopic
	Speaking  model.SpeakingSet
}

// Generator draws exams from the content pools. Its random source is seeded
// once, so a fixed seed over the same pools yields the same sequence of exams.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	mcqCount int
}

// NewGenerator creates a generator. A zero seed draws one from entropy.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		return NewGeneratorWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return NewGeneratorWithSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewGeneratorWithSource creates a generator over an explicit random source.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src), mcqCount: DefaultMCQCount}
}

// Assemble picks MCQ items without replacement plus one listening scenario,
// writing topic and speaking set, each uniformly.
func (g *Generator) Assemble(pools *model.ContentPools) (*Assembly, error) {
	if pools == nil {
		return nil, fmt.Errorf("%w: no pools loaded", ErrContentUnavailable)
	}
	switch {
	case len(pools.MCQ) == 0:
		return nil, fmt.Errorf("%w: mcq", ErrContentUnavailable)
	case len(pools.Listening) == 0:
		return nil, fmt.Errorf("%w: listening", ErrContentUnavailable)
	case len(pools.Writing) == 0:
		return nil, fmt.Errorf("%w: writing", ErrContentUnavailable)
	case len(pools.Speaking) == 0:
		return nil, fmt.Errorf("%w: speaking", ErrContentUnavailable)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	order := g.rng.Perm(len(pools.MCQ))
	n := min(g.mcqCount, len(order))
	mcq := make([]model.MCQItem, n)
	for i := 0; i < n; i++ {
		mcq[i] = pools.MCQ[order[i]]
	}

	return &Assembly{
		MCQ:       mcq,
		Listening: pools.Listening[g.rng.IntN(len(pools.Listening))],
		Writing:   pools.Writing[g.rng.IntN(len(pools.Writing))],
		Speaking:  pools.Speaking[g.rng.IntN(len(pools.Speaking))],
	}, nil
}

// Key builds the answer-key snapshot for the assembled items.
func (a *Assembly) Key() model.AnswerKey {
	key := model.AnswerKey{
		MCQ:       make(map[int64]string, len(a.MCQ)),
		Listening: make(map[string]string, len(a.Listening.Questions)),
	}
	for _, m := range a.MCQ {
		key.MCQ[m.ID] = m.Correct
	}
	for _, q := range a.Listening.Questions {
		key.Listening[q.QID] = q.Correct
	}
	return key
}

// Attempt builds the IN_PROGRESS attempt row for this assembly.
func (a *Assembly) Attempt(id uuid.UUID, examineeID string) *model.Attempt {
	ids := make([]int64, len(a.MCQ))
	for i, m := range a.MCQ {
		ids[i] = m.ID
	}
	return &model.Attempt{
		ID:                  id,
		ExamineeID:          examineeID,
		Status:              model.AttemptStatusInProgress,
		MCQItemIDs:          ids,
		ListeningScenarioID: a.Listening.ID,
		WritingTopicID:      a.Writing.ID,
		SpeakingSetID:       a.Speaking.ID,
	}
}

// Payload projects the assembly onto what the examinee may see: text and
// options only.
func (a *Assembly) Payload(attemptID uuid.UUID) *model.ExamPayload {
	mcq := make([]model.MCQForExaminee, len(a.MCQ))
	for i, m := range a.MCQ {
		mcq[i] = model.MCQForExaminee{
			ID:      m.ID,
			Text:    m.Text,
			Options: slices.Clone(m.Options),
		}
	}

	listening := make([]model.ListeningQuestionForExaminee, len(a.Listening.Questions))
	for i, q := range a.Listening.Questions {
		listening[i] = model.ListeningQuestionForExaminee{
			QID:     q.QID,
			Text:    q.Text,
			Options: slices.Clone(q.Options),
		}
	}

	return &model.ExamPayload{
		AttemptID:          attemptID.String(),
		MCQItems:           mcq,
		ListeningTopic:     a.Listening.Topic,
		ListeningPassage:   a.Listening.Passage,
		ListeningQuestions: listening,
		WritingTopic:       a.Writing.Topic,
		SpeakingPrompts:    slices.Clone(a.Speaking.Prompts),
	}
}
