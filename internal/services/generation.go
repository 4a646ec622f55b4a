package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flash-quiz/internal/llm"
	"flash-quiz/internal/models"
	"flash-quiz/internal/parser"
)

// ProgressCallback is called during generation to report progress.
type ProgressCallback func(step, message string, current, total int)

// Generated is the output of one pass of the pipeline over a set of notes.
type Generated struct {
	Flashcards []models.Flashcard    `json:"flashcards" yaml:"flashcards"`
	Quiz       []models.QuizQuestion `json:"quiz" yaml:"quiz"`
	Model      string                `json:"model" yaml:"model"`
	Warnings   []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// GenerationService turns notes into flashcards and flashcards into a quiz.
// Model and parse failures are logged and produce empty lists.
type GenerationService struct {
	gen            llm.Generator
	logger         *slog.Logger
	opts           parser.Options
	flashcardCount int
	quizCount      int
}

func NewGenerationService(gen llm.Generator, logger *slog.Logger, strict bool) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		gen:            gen,
		logger:         logger,
		opts:           parser.Options{Strict: strict},
		flashcardCount: llm.DefaultFlashcardCount,
		quizCount:      llm.DefaultQuizCount,
	}
}

// Generate runs both model calls. Whitespace-only notes return ErrNoContent
// without calling the model.
func (s *GenerationService) Generate(ctx context.Context, notes string, progress ProgressCallback) (*Generated, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, ErrNoContent
	}
	report := func(step, message string, current int) {
		if progress != nil {
			progress(step, message, current, 100)
		}
	}

	out := &Generated{}
	if s.gen != nil {
		out.Model = s.gen.Model()
	}

	report("flashcards", "Generating flashcards", 5)
	cards, warn := s.flashcards(ctx, notes)
	out.Flashcards = cards
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}

	if len(cards) == 0 {
		out.Quiz = []models.QuizQuestion{}
		report("complete", "No flashcards produced, quiz skipped", 100)
		return out, nil
	}

	report("quiz", fmt.Sprintf("Generating quiz from %d flashcards", len(cards)), 50)
	quiz, warn := s.quiz(ctx, cards)
	out.Quiz = quiz
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}

	report("complete", "Generation complete", 100)
	return out, nil
}

// Flashcards prompts for flashcards only.
func (s *GenerationService) Flashcards(ctx context.Context, notes string) ([]models.Flashcard, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, ErrNoContent
	}
	cards, _ := s.flashcards(ctx, notes)
	return cards, nil
}

// Quiz prompts for a quiz built from cards. No cards means no model call.
func (s *GenerationService) Quiz(ctx context.Context, cards []models.Flashcard) []models.QuizQuestion {
	if len(cards) == 0 {
		return []models.QuizQuestion{}
	}
	quiz, _ := s.quiz(ctx, cards)
	return quiz
}

func (s *GenerationService) flashcards(ctx context.Context, notes string) ([]models.Flashcard, string) {
	prompt, err := llm.FlashcardPrompt(notes, s.flashcardCount)
	if err != nil {
		s.logger.Error("build flashcard prompt", "error", err)
		return []models.Flashcard{}, err.Error()
	}

	raw, err := s.call(ctx, "flashcards", prompt)
	if err != nil {
		return []models.Flashcard{}, fmt.Sprintf("flashcard generation failed: %v", err)
	}

	result, err := parser.ParseFlashcards(raw, s.opts)
	if err != nil {
		s.logger.Warn("flashcard parse rejected", "error", err, "counts", result.Counts)
		return []models.Flashcard{}, err.Error()
	}
	if result.Mismatched {
		s.logger.Warn("flashcard labels mismatched, truncating", "counts", result.Counts, "kept", len(result.Cards))
		return result.Cards, fmt.Sprintf("mismatched flashcard labels, kept %d", len(result.Cards))
	}
	return result.Cards, ""
}

func (s *GenerationService) quiz(ctx context.Context, cards []models.Flashcard) ([]models.QuizQuestion, string) {
	prompt, err := llm.QuizPrompt(cards, s.quizCount)
	if err != nil {
		s.logger.Error("build quiz prompt", "error", err)
		return []models.QuizQuestion{}, err.Error()
	}

	raw, err := s.call(ctx, "quiz", prompt)
	if err != nil {
		return []models.QuizQuestion{}, fmt.Sprintf("quiz generation failed: %v", err)
	}

	result, err := parser.ParseQuiz(raw, s.opts)
	if err != nil {
		s.logger.Warn("quiz parse rejected", "error", err, "counts", result.Counts)
		return []models.QuizQuestion{}, err.Error()
	}

	unresolved := 0
	for _, q := range result.Questions {
		if q.CorrectIndex < 0 {
			unresolved++
		}
	}
	if unresolved > 0 {
		s.logger.Warn("quiz answer keys unresolved", "count", unresolved)
	}
	if result.Mismatched {
		s.logger.Warn("quiz labels mismatched, truncating", "counts", result.Counts, "kept", len(result.Questions))
		return result.Questions, fmt.Sprintf("mismatched quiz labels, kept %d", len(result.Questions))
	}
	return result.Questions, ""
}

func (s *GenerationService) call(ctx context.Context, stage, prompt string) (string, error) {
	if s.gen == nil {
		s.logger.Error("model call skipped", "stage", stage, "error", llm.ErrAIUnavailable)
		return "", llm.ErrAIUnavailable
	}

	start := time.Now()
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "model call failed",
			"stage", stage,
			"model", s.gen.Model(),
			"duration", time.Since(start),
			"error", err,
		)
		return "", err
	}

	s.logger.Info("model call complete",
		"stage", stage,
		"model", s.gen.Model(),
		"duration", time.Since(start),
		"response_chars", len(raw),
	)
	return raw, nil
}
