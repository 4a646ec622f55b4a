package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"flash-quiz/internal/models"
	"flash-quiz/internal/services"
)

type cardResponse struct {
	ID        int64   `json:"id"`
	Front     string  `json:"front"`
	Back      string  `json:"back"`
	Due       *string `json:"due"`
	State     int     `json:"state"`
	Reps      int     `json:"reps"`
	Stability float64 `json:"stability"`
}

type deckResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	SourceName string                `json:"source_name"`
	CreatedAt  string                `json:"created_at"`
	Flashcards []models.Flashcard    `json:"flashcards"`
	Cards      []cardResponse        `json:"cards"`
	Quiz       []models.QuizQuestion `json:"quiz"`
	Model      string                `json:"model,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
}

type reviewRequest struct {
	Rating string `json:"rating"`
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	notes, title, err := s.readNotes(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	deck, out, err := s.generateDeck(r.Context(), notes, title, nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := toDeckResponse(deck)
	resp.Model = out.Model
	resp.Warnings = out.Warnings
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	notes, title, err := s.readNotes(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	job := s.jobs.CreateJob(notes.SourceName)
	go s.runJob(job.ID, notes, title)

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(r.PathValue("jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) runJob(jobID string, notes *services.Notes, title string) {
	s.jobs.MarkProcessing(jobID)

	progress := func(step, message string, current, total int) {
		s.jobs.UpdateProgress(jobID, step, message, current, total)
	}
	deck, out, err := s.generateDeck(context.Background(), notes, title, progress)
	if err != nil {
		s.logger.Error("generation job failed", "job_id", jobID, "error", err)
		s.jobs.MarkFailed(jobID, err.Error())
		return
	}
	s.logger.Info("generation job complete", "job_id", jobID, "deck_id", deck.ID, "cards", len(deck.Cards), "questions", len(deck.Quiz))
	s.jobs.MarkCompleted(jobID, deck.ID, out.Warnings)
}

// generateDeck runs the pipeline over notes and stores the result.
func (s *Server) generateDeck(ctx context.Context, notes *services.Notes, title string, progress services.ProgressCallback) (*models.Deck, *services.Generated, error) {
	out, err := s.generation.Generate(ctx, notes.Text, progress)
	if err != nil {
		return nil, nil, err
	}
	if notes.Truncated {
		out.Warnings = append(out.Warnings, "notes were truncated before generation")
	}

	deck, err := s.decks.Create(ctx, title, notes.SourceName, out.Flashcards, out.Quiz)
	if err != nil {
		return nil, nil, err
	}
	return deck, out, nil
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.decks.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(decks))
	for _, d := range decks {
		out = append(out, map[string]any{
			"id":             d.ID,
			"title":          d.Title,
			"source_name":    d.SourceName,
			"card_count":     d.CardCount,
			"question_count": d.QuestionCount,
			"created_at":     d.CreatedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": out})
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.decks.Get(r.Context(), r.PathValue("deckID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeckResponse(deck))
}

func (s *Server) handleNextCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.decks.NextCard(r.Context(), r.PathValue("deckID"))
	if err != nil {
		if errors.Is(err, services.ErrNoDueCards) {
			writeJSON(w, http.StatusOK, map[string]any{
				"card":    nil,
				"message": "No cards due. Come back later!",
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card": toCardResponse(*card)})
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(r.PathValue("cardID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	rating, err := services.ParseRating(payload.Rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, logEntry, err := s.decks.ReviewCard(r.Context(), cardID, rating)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card": toCardResponse(*card),
		"log": map[string]any{
			"rating":  logEntry.Rating,
			"due_in":  logEntry.ScheduledDays,
			"updated": logEntry.ReviewedAt.Format(timeLayout),
		},
	})
}

func toDeckResponse(deck *models.Deck) deckResponse {
	resp := deckResponse{
		ID:         deck.ID,
		Title:      deck.Title,
		SourceName: deck.SourceName,
		CreatedAt:  deck.CreatedAt.Format(timeLayout),
		Flashcards: make([]models.Flashcard, 0, len(deck.Cards)),
		Cards:      make([]cardResponse, 0, len(deck.Cards)),
		Quiz:       deck.Quiz,
	}
	if resp.Quiz == nil {
		resp.Quiz = []models.QuizQuestion{}
	}
	for _, c := range deck.Cards {
		resp.Flashcards = append(resp.Flashcards, c.Flashcard())
		resp.Cards = append(resp.Cards, toCardResponse(c))
	}
	return resp
}

func toCardResponse(card models.Card) cardResponse {
	return cardResponse{
		ID:        card.ID,
		Front:     card.Front,
		Back:      card.Back,
		Due:       nullTimeToString(card.Due),
		State:     card.State,
		Reps:      card.Reps,
		Stability: card.Stability,
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.UTC().Format(time.RFC3339)
		return &str
	}
	return nil
}
