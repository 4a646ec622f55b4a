package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// GenerationJob tracks one asynchronous deck generation that the loading
// page polls.
type GenerationJob struct {
	ID         string    `json:"job_id"`
	Status     string    `json:"status"`
	SourceName string    `json:"source_name"`
	Step       string    `json:"step,omitempty"`
	Message    string    `json:"message,omitempty"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percent    int       `json:"percent"`
	DeckID     string    `json:"deck_id,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*GenerationJob
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*GenerationJob),
	}
}

func (m *JobManager) CreateJob(sourceName string) *GenerationJob {
	now := time.Now().UTC()
	job := &GenerationJob{
		ID:         uuid.NewString(),
		Status:     JobStatusPending,
		SourceName: sourceName,
		Total:      100,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.clone()
}

func (m *JobManager) GetJob(id string) (*GenerationJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusProcessing
		job.Message = "Starting"
	})
}

func (m *JobManager) UpdateProgress(id, step, message string, current, total int) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
		job.Current = current
		job.Total = total
		job.Percent = percent(current, total)
	})
}

func (m *JobManager) MarkCompleted(id, deckID string, warnings []string) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusComplete
		job.Step = "complete"
		job.Message = "Deck ready"
		job.Current = job.Total
		job.Percent = 100
		job.DeckID = deckID
		job.Warnings = append([]string(nil), warnings...)
	})
}

func (m *JobManager) MarkFailed(id string, msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "generation error"
	}
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusFailed
		job.Step = "error"
		job.Message = msg
		job.Error = msg
		job.Percent = 100
	})
}

func (m *JobManager) withJob(id string, fn func(job *GenerationJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (job *GenerationJob) clone() *GenerationJob {
	if job == nil {
		return nil
	}
	c := *job
	if len(job.Warnings) > 0 {
		c.Warnings = append([]string(nil), job.Warnings...)
	}
	return &c
}

func percent(current, total int) int {
	if total <= 0 {
		if current <= 0 {
			return 0
		}
		if current > 100 {
			return 100
		}
		return current
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int((float64(current) / float64(total)) * 100)
}
