package store

import (
	"context"
	"fmt"
	"sync"

	"narrator/models"
)

// Memory is a process-local Store. Jobs are lost on restart.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]models.JobStatus
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]models.JobStatus)}
}

func (m *Memory) Create(_ context.Context, job models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s already exists", job.JobID)
	}
	m.jobs[job.JobID] = job
	return nil
}

func (m *Memory) Update(_ context.Context, job models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.JobID]; !exists {
		return ErrNotFound
	}
	m.jobs[job.JobID] = job
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (models.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[jobID]
	if !exists {
		return models.JobStatus{}, ErrNotFound
	}
	return job, nil
}

func (m *Memory) Close() error { return nil }
