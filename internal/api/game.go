package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"flash-quiz/internal/services"
)

type startSessionRequest struct {
	NumLessons *flexInt `json:"num_lessons"`
	DeckID     string   `json:"deck_id"`
}

type lessonSubmitRequest struct {
	SessionID *string           `json:"session_id"`
	Lesson    *flexInt          `json:"lesson"`
	Answers   []services.Answer `json:"answers"`
}

type finalSubmitRequest struct {
	SessionID *string           `json:"session_id"`
	Answers   []services.Answer `json:"answers"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload startSessionRequest
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lessons := 1
	if payload.NumLessons != nil {
		lessons = int(*payload.NumLessons)
	}

	sess, err := s.quizzes.StartSession(r.Context(), lessons, strings.TrimSpace(payload.DeckID))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  sess.ID,
		"num_lessons": sess.LessonCount,
	})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	lesson, err := queryInt(r, "lesson", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	checkpoint, err := queryInt(r, "checkpoint", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards, err := s.quizzes.Checkpoint(r.Context(), sessionID, lesson, checkpoint)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}

func (s *Server) handleLessonQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	lesson, err := queryInt(r, "lesson", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	questions, err := s.quizzes.LessonQuiz(r.Context(), sessionID, lesson)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleSubmitLessonQuiz(w http.ResponseWriter, r *http.Request) {
	var payload lessonSubmitRequest
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SessionID == nil {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	if payload.Lesson == nil {
		writeError(w, http.StatusBadRequest, "Missing field")
		return
	}

	res, err := s.quizzes.SubmitLesson(r.Context(), *payload.SessionID, int(*payload.Lesson), payload.Answers)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFinalQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}

	questions, err := s.quizzes.FinalQuiz(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleSubmitFinalQuiz(w http.ResponseWriter, r *http.Request) {
	var payload finalSubmitRequest
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SessionID == nil {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}

	res, err := s.quizzes.SubmitFinal(r.Context(), *payload.SessionID, payload.Answers)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeOptionalJSON decodes the body into v. An empty body leaves v zero.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidPayload
	}
	return nil
}
