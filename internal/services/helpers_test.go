package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"flash-quiz/internal/db"
)

type stubGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

func (g *stubGenerator) Model() string { return "stub" }

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

const flashcardReply = `**Flashcard 1**
"QUESTION:" What organelle makes ATP?
"ANSWER:" The mitochondria

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
CORRECT ANSWER: OPTION 1
`
