package services

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

const (
	// LessonPoints is awarded per correct lesson quiz answer.
	LessonPoints = 10
	// FinalPoints is awarded per correct final quiz answer.
	FinalPoints = 20
	// PassRatio is the share of final answers needed to win.
	PassRatio = 0.7
)

// ErrSessionNotFound indicates a missing or unknown session id.
var ErrSessionNotFound = errors.New("invalid session_id")

// Session is the lesson and score progress of one player.
type Session struct {
	ID            string `json:"session_id"`
	LessonCount   int    `json:"num_lessons"`
	CurrentLesson int    `json:"current_lesson"`
	Score         int    `json:"score"`
	Finished      bool   `json:"finished"`
	DeckID        string `json:"deck_id,omitempty"`
}

// SessionStore keeps sessions for the lifetime of the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new session. lessons below 1 become 1.
func (s *SessionStore) Create(lessons int, deckID string) Session {
	if lessons < 1 {
		lessons = 1
	}
	sess := &Session{
		ID:            uuid.NewString(),
		LessonCount:   lessons,
		CurrentLesson: 1,
		DeckID:        deckID,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Get returns a copy of the session.
func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *sess, nil
}

// RecordLesson adds lesson points and advances the current lesson when the
// submitted lesson is at or past it.
func (s *SessionStore) RecordLesson(id string, lesson, correct int) (Session, error) {
	return s.update(id, func(sess *Session) {
		sess.Score += LessonPoints * max(correct, 0)
		if lesson >= sess.CurrentLesson {
			sess.CurrentLesson = lesson + 1
		}
	})
}

// RecordFinal adds final quiz points and marks the session finished.
func (s *SessionStore) RecordFinal(id string, correct int) (Session, error) {
	return s.update(id, func(sess *Session) {
		sess.Score += FinalPoints * max(correct, 0)
		sess.Finished = true
	})
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) update(id string, fn func(sess *Session)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	fn(sess)
	return *sess, nil
}

// Won reports whether correct out of total meets PassRatio.
func Won(correct, total int) bool {
	if total <= 0 {
		return false
	}
	return float64(correct)/float64(total) >= PassRatio
}
