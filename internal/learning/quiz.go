package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/form"
)

const (
	// IncompleteMessage is shown when a submission has unanswered questions.
	IncompleteMessage = "Please answer all questions before submitting"

	submitFailed = "Failed to submit quiz. Please try again."
)

var (
	// ErrIncomplete means at least one question has no answer. Nothing was sent.
	ErrIncomplete = errors.New("quiz has unanswered questions")
	// ErrSubmitting means a submission is already in flight.
	ErrSubmitting = form.ErrPending
	// ErrNoQuestions means the module has no quiz.
	ErrNoQuestions = errors.New("module has no quiz questions")
	// ErrPhase means the operation is not allowed in the current phase.
	ErrPhase = errors.New("operation not allowed in the current quiz phase")
)

// QuizAPI submits quiz answers for grading.
type QuizAPI interface {
	SubmitQuiz(ctx context.Context, sub api.QuizSubmission) (api.QuizResult, error)
}

// Phase is the quiz's place in the Content, Questions, Result flow.
type Phase int

const (
	PhaseContent Phase = iota
	PhaseQuestions
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseContent:
		return "content"
	case PhaseQuestions:
		return "questions"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

// Quiz runs one module's quiz. Grading is done by the backend; the quiz
// never knows the correct answers.
type Quiz struct {
	client    QuizAPI
	moduleID  api.ID
	questions []api.QuizQuestion
	guard     form.Guard

	mu      sync.Mutex
	phase   Phase
	answers map[int]string
	result  *api.QuizResult
}

// NewQuiz creates a quiz for m in the content phase.
func NewQuiz(client QuizAPI, m api.Module) *Quiz {
	return &Quiz{
		client:    client,
		moduleID:  m.ID,
		questions: m.QuizQuestions,
		answers:   make(map[int]string),
	}
}

// Questions returns the quiz questions.
func (q *Quiz) Questions() []api.QuizQuestion {
	return q.questions
}

// Phase returns the current phase.
func (q *Quiz) Phase() Phase {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.phase
}

// Start moves from the content to the questions. No request is made.
func (q *Quiz) Start() error {
	if len(q.questions) == 0 {
		return ErrNoQuestions
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.phase != PhaseContent {
		return ErrPhase
	}
	q.phase = PhaseQuestions
	return nil
}

// Answer selects option for question i, replacing any earlier choice.
func (q *Quiz) Answer(i int, option string) error {
	if i < 0 || i >= len(q.questions) {
		return fmt.Errorf("question %d out of range [0, %d)", i, len(q.questions))
	}
	if !slices.Contains(q.questions[i].Options, option) {
		return fmt.Errorf("%q is not an option for question %d", option, i)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.phase != PhaseQuestions {
		return ErrPhase
	}
	q.answers[i] = option
	return nil
}

// Missing returns the indices of unanswered questions in order.
func (q *Quiz) Missing() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.missingLocked()
}

func (q *Quiz) missingLocked() []int {
	var missing []int
	for i := range q.questions {
		if _, ok := q.answers[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Submit sends the answers in question order. It refuses, without any
// request, while a question is unanswered or another submission runs. A
// failed submission keeps the answers for another attempt.
func (q *Quiz) Submit(ctx context.Context) (api.QuizResult, error) {
	done, err := q.guard.Begin()
	if err != nil {
		return api.QuizResult{}, ErrSubmitting
	}
	defer done()

	q.mu.Lock()
	if q.phase != PhaseQuestions {
		q.mu.Unlock()
		return api.QuizResult{}, ErrPhase
	}
	if len(q.missingLocked()) > 0 {
		q.mu.Unlock()
		return api.QuizResult{}, &form.Error{Kind: form.Invalid, Message: IncompleteMessage, Err: ErrIncomplete}
	}
	answers := make([]string, len(q.questions))
	for i := range answers {
		answers[i] = q.answers[i]
	}
	q.mu.Unlock()

	result, err := q.client.SubmitQuiz(ctx, api.QuizSubmission{ModuleID: q.moduleID, Answers: answers})
	if err != nil {
		slog.Warn("quiz submission failed", "module_id", q.moduleID, "error", err)
		return api.QuizResult{}, form.FromAPI(err, submitFailed)
	}

	q.mu.Lock()
	q.result = &result
	q.phase = PhaseResult
	q.mu.Unlock()
	return result, nil
}

// Result returns the backend's verdict once submitted.
func (q *Quiz) Result() (api.QuizResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.result == nil {
		return api.QuizResult{}, false
	}
	return *q.result, true
}

// Retake clears answers and result and returns to the questions.
func (q *Quiz) Retake() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.phase != PhaseResult {
		return ErrPhase
	}
	q.answers = make(map[int]string)
	q.result = nil
	q.phase = PhaseQuestions
	return nil
}

// Summary describes a result as shown after submission.
func Summary(r api.QuizResult) string {
	score := strconv.FormatFloat(r.Score, 'f', -1, 64)
	line := fmt.Sprintf("You scored %s%% (%d out of %d correct)", score, r.CorrectAnswers, r.TotalQuestions)
	if r.Passed {
		return "Congratulations! " + line + ". Great job! You've completed this module."
	}
	return "Keep Learning! " + line + ". Review the content and try again!"
}
