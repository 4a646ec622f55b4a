package api

import (
	"errors"
	"net/http"

	"flash-quiz/internal/models"
	"flash-quiz/internal/services"
	"flash-quiz/internal/web"
)

func (s *Server) staticPage(page string, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, page, data)
	}
}

// handleGamePage shows a stored deck when deck_id is given, or an empty board.
func (s *Server) handleGamePage(w http.ResponseWriter, r *http.Request) {
	deckID := r.URL.Query().Get("deck_id")
	if deckID == "" {
		s.render(w, r, http.StatusOK, web.PageGame, web.GameData{})
		return
	}

	deck, err := s.decks.Get(r.Context(), deckID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrDeckNotFound) {
			status = http.StatusNotFound
		} else {
			s.logger.Error("load deck for page", "deck_id", deckID, "error", err)
		}
		s.render(w, r, status, web.PageError, web.ErrorData{Title: "Deck unavailable", Message: err.Error()})
		return
	}

	data := web.GameData{
		Title:      deck.Title,
		DeckID:     deck.ID,
		Flashcards: make([]models.Flashcard, 0, len(deck.Cards)),
		Quiz:       deck.Quiz,
	}
	for _, c := range deck.Cards {
		data.Flashcards = append(data.Flashcards, c.Flashcard())
	}
	s.render(w, r, http.StatusOK, web.PageGame, data)
}

// handleGameUpload generates flashcards and a quiz from the posted notes and
// renders them.
func (s *Server) handleGameUpload(w http.ResponseWriter, r *http.Request) {
	notes, title, err := s.readNotes(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, services.ErrNoContent) && !errors.Is(err, services.ErrUnsupportedFormat) && !errors.Is(err, errInvalidPayload) {
			status = http.StatusInternalServerError
			s.logger.Error("read notes for page", "error", err)
		}
		s.render(w, r, status, web.PageError, web.ErrorData{Title: "No notes to study", Message: err.Error()})
		return
	}

	deck, out, err := s.generateDeck(r.Context(), notes, title, nil)
	if err != nil {
		s.logger.Error("generate deck for page", "error", err)
		s.render(w, r, http.StatusInternalServerError, web.PageError, web.ErrorData{Title: "Generation failed", Message: err.Error()})
		return
	}

	s.render(w, r, http.StatusOK, web.PageGame, web.GameData{
		Title:      deck.Title,
		DeckID:     deck.ID,
		Flashcards: out.Flashcards,
		Quiz:       out.Quiz,
		Warnings:   out.Warnings,
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	if s.pages == nil {
		writeError(w, http.StatusNotFound, "pages are disabled")
		return
	}
	if err := s.pages.Render(w, status, page, data); err != nil {
		s.logger.Error("render page", "page", page, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
