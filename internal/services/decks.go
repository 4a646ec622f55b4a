package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"flash-quiz/internal/models"
	"flash-quiz/internal/parser"
)

var (
	// ErrDeckNotFound indicates an unknown deck id.
	ErrDeckNotFound = errors.New("deck not found")

	// ErrCardNotFound indicates an unknown card id.
	ErrCardNotFound = errors.New("card not found")

	// ErrNoDueCards indicates that there are no cards ready to review.
	ErrNoDueCards = errors.New("no due cards")
)

const cardColumns = `id, deck_id, position, front, back, due, stability, difficulty,
	elapsed_days, scheduled_days, reps, lapses, state, last_review, created_at, updated_at`

// DeckService persists generated decks and schedules their cards with FSRS.
type DeckService struct {
	db     *sql.DB
	params fsrs.Parameters
	now    func() time.Time
}

func NewDeckService(db *sql.DB) *DeckService {
	return &DeckService{
		db:     db,
		params: fsrs.DefaultParam(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a deck with its flashcards and quiz in one transaction. New
// cards are due immediately.
func (s *DeckService) Create(ctx context.Context, title, sourceName string, cards []models.Flashcard, quiz []models.QuizQuestion) (deck *models.Deck, err error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(sourceName)
	}
	if title == "" {
		title = "Untitled deck"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	deck = &models.Deck{
		ID:         uuid.NewString(),
		Title:      title,
		SourceName: sourceName,
		CreatedAt:  now,
		Cards:      make([]models.Card, 0, len(cards)),
		Quiz:       make([]models.QuizQuestion, 0, len(quiz)),
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO decks (id, title, source_name, created_at) VALUES (?, ?, ?, ?);
	`, deck.ID, deck.Title, deck.SourceName, deck.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert deck: %w", err)
	}

	cardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (deck_id, position, front, back, due, stability, difficulty, elapsed_days,
		                   scheduled_days, reps, lapses, state, last_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0, 0, ?, NULL, ?, ?);
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare card insert: %w", err)
	}
	defer cardStmt.Close()

	for i, fc := range cards {
		card := models.Card{
			DeckID:    deck.ID,
			Position:  i,
			Front:     strings.TrimSpace(fc.Question),
			Back:      strings.TrimSpace(fc.Answer),
			Due:       sql.NullTime{Time: now, Valid: true},
			State:     int(fsrs.New),
			CreatedAt: now,
			UpdatedAt: now,
		}
		res, execErr := cardStmt.ExecContext(ctx, card.DeckID, card.Position, card.Front, card.Back,
			card.Due.Time, card.State, card.CreatedAt, card.UpdatedAt)
		if execErr != nil {
			err = fmt.Errorf("insert card %q: %w", card.Front, execErr)
			return nil, err
		}
		card.ID, _ = res.LastInsertId()
		deck.Cards = append(deck.Cards, card)
	}

	quizStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quiz_questions (deck_id, position, question, option1, option2, option3, option4, correct_index, answer_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare quiz insert: %w", err)
	}
	defer quizStmt.Close()

	for i, q := range quiz {
		opts := make([]string, parser.OptionCount)
		copy(opts, q.Options)
		if _, execErr := quizStmt.ExecContext(ctx, deck.ID, i, q.Question,
			opts[0], opts[1], opts[2], opts[3], q.CorrectIndex, q.AnswerKey); execErr != nil {
			err = fmt.Errorf("insert quiz question %d: %w", i, execErr)
			return nil, err
		}
		q.Options = opts
		deck.Quiz = append(deck.Quiz, q)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deck: %w", err)
	}
	return deck, nil
}

// Get loads a deck with its cards and quiz in position order.
func (s *DeckService) Get(ctx context.Context, id string) (*models.Deck, error) {
	deck := &models.Deck{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, source_name, created_at FROM decks WHERE id = ?;
	`, id).Scan(&deck.ID, &deck.Title, &deck.SourceName, &deck.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeckNotFound
		}
		return nil, fmt.Errorf("load deck %s: %w", id, err)
	}

	if deck.Cards, err = s.Cards(ctx, id); err != nil {
		return nil, err
	}
	if deck.Quiz, err = s.Quiz(ctx, id); err != nil {
		return nil, err
	}
	return deck, nil
}

// Exists reports whether a deck with id is stored.
func (s *DeckService) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decks WHERE id = ?;`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check deck %s: %w", id, err)
	}
	return n > 0, nil
}

// Cards returns the cards of a deck ordered by position.
func (s *DeckService) Cards(ctx context.Context, deckID string) ([]models.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE deck_id = ?
		ORDER BY position ASC;
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}

// Quiz returns the quiz questions of a deck ordered by position.
func (s *DeckService) Quiz(ctx context.Context, deckID string) ([]models.QuizQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, option1, option2, option3, option4, correct_index, answer_key
		FROM quiz_questions WHERE deck_id = ?
		ORDER BY position ASC;
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	defer rows.Close()

	questions := []models.QuizQuestion{}
	for rows.Next() {
		q := models.QuizQuestion{Options: make([]string, parser.OptionCount)}
		if err := rows.Scan(&q.Question, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3],
			&q.CorrectIndex, &q.AnswerKey); err != nil {
			return nil, fmt.Errorf("scan quiz question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz questions: %w", err)
	}
	return questions, nil
}

// List returns deck summaries, newest first.
func (s *DeckService) List(ctx context.Context) ([]models.DeckSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.source_name, d.created_at,
		       (SELECT COUNT(*) FROM cards c WHERE c.deck_id = d.id),
		       (SELECT COUNT(*) FROM quiz_questions q WHERE q.deck_id = d.id)
		FROM decks d
		ORDER BY d.created_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	summaries := []models.DeckSummary{}
	for rows.Next() {
		var d models.DeckSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.SourceName, &d.CreatedAt, &d.CardCount, &d.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan deck summary: %w", err)
		}
		summaries = append(summaries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decks: %w", err)
	}
	return summaries, nil
}

// NextCard returns the most overdue card of a deck, falling back to the first
// card never reviewed.
func (s *DeckService) NextCard(ctx context.Context, deckID string) (*models.Card, error) {
	ok, err := s.Exists(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeckNotFound
	}

	card, err := s.fetchCard(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE deck_id = ? AND due IS NOT NULL AND due <= ?
		ORDER BY due ASC, position ASC
		LIMIT 1;
	`, deckID, s.now())
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE deck_id = ? AND state = ?
		ORDER BY position ASC
		LIMIT 1;
	`, deckID, int(fsrs.New))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueCards
		}
		return nil, err
	}
	return card, nil
}

// ReviewCard updates the scheduling information based on the user's rating.
func (s *DeckService) ReviewCard(ctx context.Context, cardID int64, rating fsrs.Rating) (card *models.Card, log *models.ReviewLog, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err = scanCard(tx.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?;`, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrCardNotFound
		}
		return nil, nil, fmt.Errorf("load card %d: %w", cardID, err)
	}

	now := s.now()
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		err = fmt.Errorf("rating %d not supported", rating)
		return nil, nil, err
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTimePtr(card.Due),
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		nullTimePtr(card.LastReview),
		card.UpdatedAt,
		card.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update card %d: %w", card.ID, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, int(info.ReviewLog.Rating), int(info.ReviewLog.ScheduledDays), int(info.ReviewLog.ElapsedDays), int(info.ReviewLog.State), now)
	if err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	log = &models.ReviewLog{
		CardID:        card.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}
	log.ID, _ = res.LastInsertId()
	return card, log, nil
}

// ParseRating maps again/hard/good/easy to an FSRS rating.
func ParseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", raw)
	}
}

func (s *DeckService) fetchCard(ctx context.Context, query string, args ...any) (*models.Card, error) {
	return scanCard(s.db.QueryRowContext(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	if err := row.Scan(
		&card.ID,
		&card.DeckID,
		&card.Position,
		&card.Front,
		&card.Back,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return card, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
