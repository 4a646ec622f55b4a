package services

import (
	"context"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-quiz/internal/models"
)

func sampleCards() []models.Flashcard {
	return []models.Flashcard{
		{Question: "What organelle makes ATP?", Answer: "The mitochondria"},
		{Question: "What holds the cell's DNA?", Answer: "The nucleus"},
		{Question: "Where are proteins made?", Answer: "Ribosomes"},
	}
}

func sampleQuiz() []models.QuizQuestion {
	return []models.QuizQuestion{
		{Question: "ATP?", Options: []string{"Nucleus", "Mitochondria", "Ribosome", "Golgi"}, CorrectIndex: 1, AnswerKey: "2"},
		{Question: "DNA?", Options: []string{"Nucleus", "Lysosome", "Vacuole", "Membrane"}, CorrectIndex: 0, AnswerKey: "A"},
		{Options: []string{"a", "b", "c", "d"}, CorrectIndex: -1, AnswerKey: "none"},
	}
}

func TestDeckService_CreateAndGet(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	ctx := context.Background()

	deck, err := svc.Create(ctx, "", "cells.txt", sampleCards(), sampleQuiz())
	require.NoError(t, err)
	assert.NotEmpty(t, deck.ID)
	assert.Equal(t, "cells.txt", deck.Title)
	require.Len(t, deck.Cards, 3)
	assert.NotZero(t, deck.Cards[0].ID)

	loaded, err := svc.Get(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, deck.Title, loaded.Title)
	require.Len(t, loaded.Cards, 3)
	for i, c := range loaded.Cards {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, sampleCards()[i].Question, c.Front)
		assert.Equal(t, int(fsrs.New), c.State)
		assert.True(t, c.Due.Valid)
	}
	assert.Equal(t, sampleQuiz(), loaded.Quiz)
}

func TestDeckService_GetUnknown(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDeckNotFound)
}

func TestDeckService_List(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, "Biology", "bio.txt", sampleCards(), sampleQuiz())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Empty", "", nil, nil)
	require.NoError(t, err)

	decks, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 2)

	byTitle := map[string]models.DeckSummary{}
	for _, d := range decks {
		byTitle[d.Title] = d
	}
	assert.Equal(t, 3, byTitle["Biology"].CardCount)
	assert.Equal(t, 3, byTitle["Biology"].QuestionCount)
	assert.Equal(t, 0, byTitle["Empty"].CardCount)
}

func TestDeckService_NextCardAndReview(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	ctx := context.Background()

	deck, err := svc.Create(ctx, "Biology", "", sampleCards(), nil)
	require.NoError(t, err)

	next, err := svc.NextCard(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Position)

	before := time.Now().UTC()
	card, log, err := svc.ReviewCard(ctx, next.ID, fsrs.Easy)
	require.NoError(t, err)
	require.True(t, card.Due.Valid)
	assert.True(t, card.Due.Time.After(before), "due should move forward")
	assert.Equal(t, 1, card.Reps)
	assert.True(t, card.LastReview.Valid)
	assert.Equal(t, int(fsrs.Easy), log.Rating)
	assert.NotZero(t, log.ID)

	next, err = svc.NextCard(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Position)
}

func TestDeckService_NoDueCards(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	ctx := context.Background()

	deck, err := svc.Create(ctx, "One", "", sampleCards()[:1], nil)
	require.NoError(t, err)

	_, _, err = svc.ReviewCard(ctx, deck.Cards[0].ID, fsrs.Easy)
	require.NoError(t, err)

	_, err = svc.NextCard(ctx, deck.ID)
	assert.ErrorIs(t, err, ErrNoDueCards)

	_, err = svc.NextCard(ctx, "missing")
	assert.ErrorIs(t, err, ErrDeckNotFound)
}

func TestDeckService_ReviewUnknownCard(t *testing.T) {
	svc := NewDeckService(newTestDB(t))
	_, _, err := svc.ReviewCard(context.Background(), 999, fsrs.Good)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestParseRating(t *testing.T) {
	tests := map[string]fsrs.Rating{
		"again": fsrs.Again,
		"Hard":  fsrs.Hard,
		" good": fsrs.Good,
		"EASY":  fsrs.Easy,
	}
	for raw, want := range tests {
		got, err := ParseRating(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRating("perfect")
	assert.Error(t, err)
}
