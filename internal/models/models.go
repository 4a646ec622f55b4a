package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Flashcard is a question/answer pair recovered from model output or notes.
type Flashcard struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// QuizQuestion is a four-option multiple choice question.
// CorrectIndex is zero based; -1 means the answer key could not be resolved.
type QuizQuestion struct {
	Question     string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correct_index" yaml:"correct_index"`
	AnswerKey    string   `json:"answer_key" yaml:"answer_key"`
}

// Deck groups the flashcards and quiz generated from one set of notes.
type Deck struct {
	ID         string
	Title      string
	SourceName string
	CreatedAt  time.Time
	Cards      []Card
	Quiz       []QuizQuestion
}

type Card struct {
	ID            int64
	DeckID        string
	Position      int
	Front         string
	Back          string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeckSummary is the listing view of a deck.
type DeckSummary struct {
	ID            string
	Title         string
	SourceName    string
	CardCount     int
	QuestionCount int
	CreatedAt     time.Time
}

type ReviewLog struct {
	ID            int64
	CardID        int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

func (c *Card) Flashcard() Flashcard {
	return Flashcard{Question: c.Front, Answer: c.Back}
}

func (c *Card) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *Card) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
