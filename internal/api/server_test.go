package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-quiz/internal/db"
	"flash-quiz/internal/services"
	"flash-quiz/internal/web"
)

const flashcardReply = `**Flashcard 1**
QUESTION: What organelle makes ATP?
ANSWER: The mitochondria

**Flashcard 2**
QUESTION: What holds the cell's DNA?
ANSWER: The nucleus
`

const quizReply = `**Question 1**
QUESTION: What organelle makes ATP?
OPTION 1: Nucleus
OPTION 2: Mitochondria
OPTION 3: Ribosome
OPTION 4: Golgi body
CORRECT ANSWER: 2

**Question 2**
QUESTION: What holds the cell's DNA?
OPTION 1: Nucleus
OPTION 2: Lysosome
OPTION 3: Vacuole
OPTION 4: Membrane
CORRECT ANSWER: 1
`

// scriptedGenerator answers flashcard prompts and quiz prompts by content.
type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if strings.Contains(prompt, "generate a quiz") {
		return quizReply, nil
	}
	return flashcardReply, nil
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	server *httptest.Server
	gen    *scriptedGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	notesPath := filepath.Join(t.TempDir(), "os-notes.txt")
	require.NoError(t, os.WriteFile(notesPath, []byte("Processes\n* a running program\n"), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := &scriptedGenerator{}
	decks := services.NewDeckService(conn)
	srv := NewServer(
		logger,
		services.NewNotesService(t.TempDir(), 20000),
		services.NewGenerationService(gen, logger, false),
		decks,
		services.NewQuizService(decks, services.NewSessionStore(), notesPath, 4, logger),
		web.MustNew(),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, gen: gen}
}

func (e *testEnv) url(path string) string { return e.server.URL + path }

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func startSession(t *testing.T, env *testEnv, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, env.url("/start-session"), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		SessionID  string `json:"session_id"`
		NumLessons int    `json:"num_lessons"`
	}
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.url("/ping"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "pong", out["message"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.url("/start-session"), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.url("/start-session"), map[string]any{"num_lessons": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decodeBody(t, resp, &out)
	assert.EqualValues(t, 3, out["num_lessons"])
	assert.NotEmpty(t, out["session_id"])

	// Empty body defaults to one lesson.
	resp, err := http.Post(env.url("/start-session"), "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &out)
	assert.EqualValues(t, 1, out["num_lessons"])

	resp = postJSON(t, env.url("/start-session"), map[string]any{"num_lessons": 1, "deck_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGameEndpoints_InvalidSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/checkpoint",
		"/checkpoint?session_id=nope",
		"/lesson-quiz?session_id=nope&lesson=1",
		"/final-quiz?session_id=nope",
	} {
		resp, err := http.Get(env.url(path))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		var out map[string]string
		decodeBody(t, resp, &out)
		assert.Equal(t, "Invalid session_id", out["error"], path)
	}

	resp := postJSON(t, env.url("/lesson-quiz/submit"), map[string]any{"session_id": "nope", "lesson": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "Invalid session_id", out["error"])

	resp = postJSON(t, env.url("/final-quiz/submit"), map[string]any{"answers": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &out)
	assert.Equal(t, "Invalid session_id", out["error"])
}

func TestSubmitLesson_MissingField(t *testing.T) {
	env := newTestEnv(t)
	id := startSession(t, env, map[string]any{"num_lessons": 2})

	resp := postJSON(t, env.url("/lesson-quiz/submit"), map[string]any{"session_id": id})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "Missing field", out["error"])
}

func TestDefaultGameFlow(t *testing.T) {
	env := newTestEnv(t)
	id := startSession(t, env, map[string]any{"num_lessons": "2"})

	resp, err := http.Get(env.url("/checkpoint?" + url.Values{"session_id": {id}, "lesson": {"1"}, "checkpoint": {"0"}}.Encode()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cp struct {
		Flashcards []services.CheckpointCard `json:"flashcards"`
	}
	decodeBody(t, resp, &cp)
	require.Len(t, cp.Flashcards, 1)
	assert.Equal(t, "Processes", cp.Flashcards[0].Front)

	resp, err = http.Get(env.url("/lesson-quiz?session_id=" + id + "&lesson=1"))
	require.NoError(t, err)
	var quiz struct {
		Questions []services.Question `json:"questions"`
	}
	decodeBody(t, resp, &quiz)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "q1_1", quiz.Questions[0].ID)

	resp = postJSON(t, env.url("/lesson-quiz/submit"), map[string]any{
		"session_id": id,
		"lesson":     1,
		"answers": []map[string]any{
			{"id": "q1_1", "choice": 3},
			{"id": "q1_2", "choice": 1},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lesson services.LessonResult
	decodeBody(t, resp, &lesson)
	assert.Equal(t, services.LessonResult{Correct: 2, Total: 2, NewScore: 20, CurrentLesson: 2}, lesson)

	resp = postJSON(t, env.url("/final-quiz/submit"), map[string]any{
		"session_id": id,
		"answers":    []map[string]any{{"id": "final1", "choice": 2}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var final services.FinalResult
	decodeBody(t, resp, &final)
	assert.Equal(t, services.FinalResult{Correct: 1, Total: 2, FinalScore: 40, Won: false}, final)
}

func TestCheckpoint_InvalidLesson(t *testing.T) {
	env := newTestEnv(t)
	id := startSession(t, env, nil)

	resp, err := http.Get(env.url("/checkpoint?session_id=" + id + "&lesson=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func createDeck(t *testing.T, env *testEnv) deckResponse {
	t.Helper()
	resp := postJSON(t, env.url("/api/decks"), map[string]any{"title": "Cells", "notes": "Cells have organelles."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var deck deckResponse
	decodeBody(t, resp, &deck)
	return deck
}

func TestCreateDeck_JSON(t *testing.T) {
	env := newTestEnv(t)
	deck := createDeck(t, env)

	assert.Equal(t, "Cells", deck.Title)
	require.Len(t, deck.Flashcards, 2)
	assert.Equal(t, "The mitochondria", deck.Flashcards[0].Answer)
	require.Len(t, deck.Quiz, 2)
	assert.Equal(t, 1, deck.Quiz[0].CorrectIndex)
	assert.Equal(t, "scripted", deck.Model)
	assert.Equal(t, 2, env.gen.Calls())

	resp, err := http.Get(env.url("/api/decks/" + deck.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded deckResponse
	decodeBody(t, resp, &loaded)
	assert.Equal(t, deck.Flashcards, loaded.Flashcards)

	resp, err = http.Get(env.url("/api/decks"))
	require.NoError(t, err)
	var list struct {
		Decks []map[string]any `json:"decks"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Decks, 1)
	assert.EqualValues(t, 2, list.Decks[0]["card_count"])
}

func TestCreateDeck_Multipart(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("userfile", "cells.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Cells have organelles."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(env.url("/api/decks"), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var deck deckResponse
	decodeBody(t, resp, &deck)
	assert.Equal(t, "cells.txt", deck.SourceName)
	assert.Equal(t, "cells.txt", deck.Title)
}

func TestCreateDeck_NoContent(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.url("/api/decks"), map[string]any{"notes": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.PostForm(env.url("/api/decks"), url.Values{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 0, env.gen.Calls(), "model must not be called without notes")
}

func TestGetDeck_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.url("/api/decks/missing"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestDeckSession_UsesGeneratedQuiz(t *testing.T) {
	env := newTestEnv(t)
	deck := createDeck(t, env)
	id := startSession(t, env, map[string]any{"num_lessons": 1, "deck_id": deck.ID})

	resp, err := http.Get(env.url("/lesson-quiz?session_id=" + id + "&lesson=1"))
	require.NoError(t, err)
	var quiz struct {
		Questions []services.Question `json:"questions"`
	}
	decodeBody(t, resp, &quiz)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "What organelle makes ATP?", quiz.Questions[0].Question)
	assert.Equal(t, 1, quiz.Questions[0].CorrectIndex)

	resp, err = http.Get(env.url("/checkpoint?session_id=" + id + "&lesson=1&checkpoint=0"))
	require.NoError(t, err)
	var cp struct {
		Flashcards []services.CheckpointCard `json:"flashcards"`
	}
	decodeBody(t, resp, &cp)
	require.Len(t, cp.Flashcards, 2)
	assert.Equal(t, "What organelle makes ATP?", cp.Flashcards[0].Front)
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	deck := createDeck(t, env)

	resp, err := http.Get(env.url("/api/decks/" + deck.ID + "/next"))
	require.NoError(t, err)
	var next struct {
		Card *cardResponse `json:"card"`
	}
	decodeBody(t, resp, &next)
	require.NotNil(t, next.Card)
	assert.Equal(t, deck.Cards[0].ID, next.Card.ID)

	resp = postJSON(t, env.url("/api/cards/"+jsonInt(next.Card.ID)+"/review"), map[string]string{"rating": "easy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reviewed struct {
		Card cardResponse   `json:"card"`
		Log  map[string]any `json:"log"`
	}
	decodeBody(t, resp, &reviewed)
	require.NotNil(t, reviewed.Card.Due)
	due, err := time.Parse(time.RFC3339, *reviewed.Card.Due)
	require.NoError(t, err)
	assert.True(t, due.After(time.Now()))

	resp = postJSON(t, env.url("/api/cards/"+jsonInt(next.Card.ID)+"/review"), map[string]string{"rating": "meh"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, env.url("/api/cards/999999/review"), map[string]string{"rating": "good"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGenerationJob(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.url("/api/jobs"), map[string]any{"notes": "Cells have organelles."})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job GenerationJob
	decodeBody(t, resp, &job)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		resp, err := http.Get(env.url("/api/jobs/" + job.ID))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var current GenerationJob
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			return false
		}
		job = current
		return current.Status == JobStatusComplete
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 100, job.Percent)
	assert.NotEmpty(t, job.DeckID)

	resp, err := http.Get(env.url("/api/jobs/unknown"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/", "/page2", "/loading", "/person", "/game"} {
		resp, err := http.Get(env.url(path))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html", path)
		resp.Body.Close()
	}

	resp, err := http.Get(env.url("/nope"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGameUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("userfile", "cells.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Cells have organelles."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(env.url("/game"), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "What organelle makes ATP?")
	assert.Contains(t, string(body), "Golgi body")
}

func TestGameUpload_NoFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(env.url("/game"), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.gen.Calls())
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
