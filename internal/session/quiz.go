package session

import (
	"sort"
	"strings"
)

// Question is a quiz prompt and its accepted answer
type Question struct {
	Prompt string
	Answer string
}

// DefaultQuestions is the built-in quiz bank
var DefaultQuestions = []Question{
	{Prompt: "What is the capital of France?", Answer: "paris"},
	{Prompt: "What is 2 + 2?", Answer: "4"},
	{Prompt: "What is the capital of Japan?", Answer: "tokyo"},
	{Prompt: "How many legs does a spider have?", Answer: "8"},
	{Prompt: "Which planet is known as the red planet?", Answer: "mars"},
	{Prompt: "What is the chemical symbol for gold?", Answer: "au"},
}

// Score is one line of a quiz scoreboard
type Score struct {
	Account string
	Correct int
}

// AnswerResult describes a quiz answer
type AnswerResult struct {
	Correct bool
	Reward  int64
	Balance int64
}

type quizState struct {
	question Question
	scorers  map[string]int
}

// StartQuiz poses a random question in scope
func (r *Registry) StartQuiz(scope string) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.quizzes[scope]; ok {
		return Question{}, ErrSessionLive
	}

	q := r.questions[r.rng.IntN(len(r.questions))]
	r.quizzes[scope] = &quizState{
		question: q,
		scorers:  make(map[string]int),
	}
	return q, nil
}

// CurrentQuestion returns the live question in scope
func (r *Registry) CurrentQuestion(scope string) (Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quizzes[scope]
	if !ok {
		return Question{}, false
	}
	return q.question, true
}

// AnswerQuiz checks text against the live question, ignoring case and
// surrounding space. Each correct answer pays QuizReward and the quiz stays
// open for other players until EndQuiz.
func (r *Registry) AnswerQuiz(scope, account, text string) (AnswerResult, error) {
	r.mu.Lock()
	q, ok := r.quizzes[scope]
	if !ok {
		r.mu.Unlock()
		return AnswerResult{}, ErrNoSession
	}
	if !strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(q.question.Answer)) {
		r.mu.Unlock()
		return AnswerResult{Correct: false}, nil
	}
	q.scorers[account]++
	r.mu.Unlock()

	balance := r.store.Add(account, QuizReward)
	return AnswerResult{Correct: true, Reward: QuizReward, Balance: balance}, nil
}

// EndQuiz closes the quiz and returns the scoreboard, best first
func (r *Registry) EndQuiz(scope string) ([]Score, error) {
	r.mu.Lock()
	q, ok := r.quizzes[scope]
	if ok {
		delete(r.quizzes, scope)
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNoSession
	}

	board := make([]Score, 0, len(q.scorers))
	for account, n := range q.scorers {
		board = append(board, Score{Account: account, Correct: n})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Correct != board[j].Correct {
			return board[i].Correct > board[j].Correct
		}
		return board[i].Account < board[j].Account
	})
	return board, nil
}
