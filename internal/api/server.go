package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flash-quiz/internal/services"
	"flash-quiz/internal/web"
)

const (
	maxMultipartMemory = 8 << 20  // 8 MB
	maxUploadBytes     = 16 << 20 // 16 MB
)

var errInvalidPayload = errors.New("invalid payload")

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	notes      *services.NotesService
	generation *services.GenerationService
	decks      *services.DeckService
	quizzes    *services.QuizService
	pages      *web.Pages
	jobs       *JobManager
}

func NewServer(
	logger *slog.Logger,
	notes *services.NotesService,
	generation *services.GenerationService,
	decks *services.DeckService,
	quizzes *services.QuizService,
	pages *web.Pages,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		notes:      notes,
		generation: generation,
		decks:      decks,
		quizzes:    quizzes,
		pages:      pages,
		jobs:       NewJobManager(),
	}
	s.routes()
	return s
}

// Handler returns the mux wrapped in request logging and CORS.
func (s *Server) Handler() http.Handler {
	return Logging(s.logger)(CORS(s.mux))
}

func (s *Server) routes() {
	// Game
	s.mux.HandleFunc("GET /ping", s.handlePing)
	s.mux.HandleFunc("POST /start-session", s.handleStartSession)
	s.mux.HandleFunc("GET /checkpoint", s.handleCheckpoint)
	s.mux.HandleFunc("GET /lesson-quiz", s.handleLessonQuiz)
	s.mux.HandleFunc("POST /lesson-quiz/submit", s.handleSubmitLessonQuiz)
	s.mux.HandleFunc("GET /final-quiz", s.handleFinalQuiz)
	s.mux.HandleFunc("POST /final-quiz/submit", s.handleSubmitFinalQuiz)

	// Decks
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/decks", s.handleCreateDeck)
	s.mux.HandleFunc("GET /api/decks", s.handleListDecks)
	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs/{jobID}", s.handleJobStatus)
	s.mux.HandleFunc("GET /api/decks/{deckID}", s.handleGetDeck)
	s.mux.HandleFunc("GET /api/decks/{deckID}/next", s.handleNextCard)
	s.mux.HandleFunc("POST /api/cards/{cardID}/review", s.handleReviewCard)

	// Pages
	s.mux.HandleFunc("/{$}", s.staticPage(web.PageIndex, nil))
	s.mux.HandleFunc("/page2", s.staticPage(web.PagePage2, nil))
	s.mux.HandleFunc("/loading", s.staticPage(web.PageLoading, nil))
	s.mux.HandleFunc("/person", s.staticPage(web.PagePerson, web.PersonData{Characters: web.DefaultCharacters}))
	s.mux.HandleFunc("GET /game", s.handleGamePage)
	s.mux.HandleFunc("POST /game", s.handleGameUpload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service errors to a status and JSON body.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		writeError(w, http.StatusBadRequest, "Invalid session_id")
	case errors.Is(err, services.ErrNoContent),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, errInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrDeckNotFound),
		errors.Is(err, services.ErrCardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if fv, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			*f = flexInt(int(fv))
			return nil
		}
		return errInvalidPayload
	}
	*f = flexInt(v)
	return nil
}

const timeLayout = time.RFC3339

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
