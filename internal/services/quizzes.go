package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"flash-quiz/internal/models"
	"flash-quiz/internal/parser"
)

// DefaultCheckpointSize is how many flashcards one checkpoint shows.
const DefaultCheckpointSize = 4

// Question is a quiz question as served to the game.
type Question struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// Answer is one submitted choice. A nil Choice never matches.
type Answer struct {
	ID     string `json:"id"`
	Choice *int   `json:"choice"`
}

// CheckpointCard is a flashcard as served to the game.
type CheckpointCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// LessonResult is the outcome of a lesson quiz submission.
type LessonResult struct {
	Correct       int `json:"correct"`
	Total         int `json:"total"`
	NewScore      int `json:"new_score"`
	CurrentLesson int `json:"current_lesson"`
}

// FinalResult is the outcome of the final quiz submission.
type FinalResult struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	FinalScore int  `json:"final_score"`
	Won        bool `json:"won"`
}

// QuizService assembles checkpoints and quizzes for sessions and scores
// submissions. Sessions without a deck use built-in questions and the notes
// file at notesPath.
type QuizService struct {
	decks          *DeckService
	sessions       *SessionStore
	notesPath      string
	checkpointSize int
	logger         *slog.Logger
}

func NewQuizService(decks *DeckService, sessions *SessionStore, notesPath string, checkpointSize int, logger *slog.Logger) *QuizService {
	if checkpointSize <= 0 {
		checkpointSize = DefaultCheckpointSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{
		decks:          decks,
		sessions:       sessions,
		notesPath:      notesPath,
		checkpointSize: checkpointSize,
		logger:         logger,
	}
}

// StartSession creates a session, optionally bound to a stored deck.
func (s *QuizService) StartSession(ctx context.Context, lessons int, deckID string) (Session, error) {
	if deckID != "" {
		if s.decks == nil {
			return Session{}, ErrDeckNotFound
		}
		ok, err := s.decks.Exists(ctx, deckID)
		if err != nil {
			return Session{}, err
		}
		if !ok {
			return Session{}, ErrDeckNotFound
		}
	}
	sess := s.sessions.Create(lessons, deckID)
	s.logger.Info("session started", "session_id", sess.ID, "lessons", sess.LessonCount, "deck_id", deckID)
	return sess, nil
}

// Checkpoint returns the flashcards shown at a checkpoint of a lesson.
func (s *QuizService) Checkpoint(ctx context.Context, sessionID string, lesson, checkpoint int) ([]CheckpointCard, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.DeckID == "" {
		return s.notesCheckpoint(), nil
	}

	cards, err := s.decks.Cards(ctx, sess.DeckID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint cards: %w", err)
	}

	lo, hi := partition(len(cards), sess.LessonCount, lesson)
	lessonCards := cards[lo:hi]
	if checkpoint < 0 {
		return []CheckpointCard{}, nil
	}
	start := checkpoint * s.checkpointSize
	if start >= len(lessonCards) {
		return []CheckpointCard{}, nil
	}
	end := min(start+s.checkpointSize, len(lessonCards))

	out := make([]CheckpointCard, 0, end-start)
	for _, c := range lessonCards[start:end] {
		out = append(out, CheckpointCard{Front: c.Front, Back: c.Back})
	}
	return out, nil
}

// LessonQuiz returns the questions for one lesson of a session.
func (s *QuizService) LessonQuiz(ctx context.Context, sessionID string, lesson int) ([]Question, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.lessonQuestions(ctx, sess, lesson)
}

// SubmitLesson scores answers for a lesson and updates the session.
func (s *QuizService) SubmitLesson(ctx context.Context, sessionID string, lesson int, answers []Answer) (LessonResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return LessonResult{}, err
	}
	questions, err := s.lessonQuestions(ctx, sess, lesson)
	if err != nil {
		return LessonResult{}, err
	}

	correct, total := CheckAnswers(questions, answers)
	sess, err = s.sessions.RecordLesson(sessionID, lesson, correct)
	if err != nil {
		return LessonResult{}, err
	}

	s.logger.Info("lesson quiz submitted",
		"session_id", sessionID,
		"lesson", lesson,
		"correct", correct,
		"total", total,
		"score", sess.Score,
	)
	return LessonResult{
		Correct:       correct,
		Total:         total,
		NewScore:      sess.Score,
		CurrentLesson: sess.CurrentLesson,
	}, nil
}

// FinalQuiz returns the final quiz questions of a session.
func (s *QuizService) FinalQuiz(ctx context.Context, sessionID string) ([]Question, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.finalQuestions(ctx, sess)
}

// SubmitFinal scores the final quiz and finishes the session.
func (s *QuizService) SubmitFinal(ctx context.Context, sessionID string, answers []Answer) (FinalResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return FinalResult{}, err
	}
	questions, err := s.finalQuestions(ctx, sess)
	if err != nil {
		return FinalResult{}, err
	}

	correct, total := CheckAnswers(questions, answers)
	sess, err = s.sessions.RecordFinal(sessionID, correct)
	if err != nil {
		return FinalResult{}, err
	}

	won := Won(correct, total)
	s.logger.Info("final quiz submitted",
		"session_id", sessionID,
		"correct", correct,
		"total", total,
		"score", sess.Score,
		"won", won,
	)
	return FinalResult{
		Correct:    correct,
		Total:      total,
		FinalScore: sess.Score,
		Won:        won,
	}, nil
}

// CheckAnswers counts answers whose id exists and whose choice equals the
// correct index. Each question id counts at most once.
func CheckAnswers(questions []Question, answers []Answer) (correct, total int) {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		q, ok := byID[a.ID]
		if !ok || seen[a.ID] || a.Choice == nil {
			continue
		}
		seen[a.ID] = true
		if q.CorrectIndex >= 0 && *a.Choice == q.CorrectIndex {
			correct++
		}
	}
	return correct, len(questions)
}

func (s *QuizService) lessonQuestions(ctx context.Context, sess Session, lesson int) ([]Question, error) {
	quiz, err := s.deckQuiz(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(quiz) == 0 {
		return DefaultLessonQuestions(lesson), nil
	}

	lo, hi := partition(len(quiz), sess.LessonCount, lesson)
	out := make([]Question, 0, hi-lo)
	for n, q := range quiz[lo:hi] {
		out = append(out, toQuestion(fmt.Sprintf("q%d_%d", lesson, n+1), q))
	}
	return out, nil
}

func (s *QuizService) finalQuestions(ctx context.Context, sess Session) ([]Question, error) {
	quiz, err := s.deckQuiz(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(quiz) == 0 {
		return DefaultFinalQuestions(), nil
	}

	out := make([]Question, 0, len(quiz))
	for n, q := range quiz {
		out = append(out, toQuestion(fmt.Sprintf("final%d", n+1), q))
	}
	return out, nil
}

func (s *QuizService) deckQuiz(ctx context.Context, sess Session) ([]models.QuizQuestion, error) {
	if sess.DeckID == "" || s.decks == nil {
		return nil, nil
	}
	quiz, err := s.decks.Quiz(ctx, sess.DeckID)
	if err != nil {
		return nil, fmt.Errorf("load deck quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizService) notesCheckpoint() []CheckpointCard {
	data, err := os.ReadFile(s.notesPath)
	if err != nil {
		s.logger.Warn("read notes file", "path", s.notesPath, "error", err)
		return []CheckpointCard{{
			Front: "Error loading notes",
			Back:  err.Error(),
		}}
	}

	cards := parser.Segment(string(data))
	if len(cards) == 0 {
		return []CheckpointCard{{
			Front: "No flashcards parsed from " + s.notesPath,
			Back:  "Check the note formatting: headings on their own line, details as * or - bullets.",
		}}
	}

	out := make([]CheckpointCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, CheckpointCard{Front: c.Question, Back: c.Answer})
	}
	return out
}

func toQuestion(id string, q models.QuizQuestion) Question {
	text := q.Question
	if text == "" {
		text = "Which of these is correct?"
	}
	return Question{
		ID:           id,
		Question:     text,
		Options:      append([]string(nil), q.Options...),
		CorrectIndex: q.CorrectIndex,
	}
}

// partition returns the bounds of part (1 based) when n items are split in
// order across parts. Out of range parts are empty.
func partition(n, parts, part int) (lo, hi int) {
	if parts < 1 {
		parts = 1
	}
	if part < 1 || part > parts || n == 0 {
		return 0, 0
	}
	return (part - 1) * n / parts, part * n / parts
}

// DefaultLessonQuestions is served when a session has no generated quiz.
func DefaultLessonQuestions(lesson int) []Question {
	return []Question{
		{
			ID:           fmt.Sprintf("q%d_1", lesson),
			Question:     fmt.Sprintf("Dummy question for lesson %d: What is 2 + 2?", lesson),
			Options:      []string{"1", "2", "3", "4"},
			CorrectIndex: 3,
		},
		{
			ID:           fmt.Sprintf("q%d_2", lesson),
			Question:     fmt.Sprintf("Dummy question 2 for lesson %d: What is 3 + 3?", lesson),
			Options:      []string{"5", "6", "7", "8"},
			CorrectIndex: 1,
		},
	}
}

// DefaultFinalQuestions is served when a session has no generated quiz.
func DefaultFinalQuestions() []Question {
	return []Question{
		{
			ID:           "final1",
			Question:     "Dummy final question: What is the capital of France?",
			Options:      []string{"Berlin", "London", "Paris", "Rome"},
			CorrectIndex: 2,
		},
		{
			ID:           "final2",
			Question:     "Dummy final question 2: What is 5 * 3?",
			Options:      []string{"15", "10", "8", "20"},
			CorrectIndex: 0,
		},
	}
}
