package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IJournalPersistence.
//
// All data is stored in memory and will be lost when the process exits.
// Records are kept serialized so callers can never mutate stored state.
type MemoryPersistence struct {
	mu sync.RWMutex

	// jobId -> serialized RemoteSigningJob
	jobs map[string][]byte

	// transactionId -> serialized MonitorResult
	results map[string][]byte

	closed bool
}

var _ persistence.IJournalPersistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory journal.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		jobs:    make(map[string][]byte),
		results: make(map[string][]byte),
	}
}

// SaveSigningJob persists a signing job.
func (m *MemoryPersistence) SaveSigningJob(job *types.RemoteSigningJob) error {
	data, err := persistence.MarshalSigningJob(job)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.jobs[job.JobId] = data
	return nil
}

// LoadSigningJob retrieves a signing job by id.
func (m *MemoryPersistence) LoadSigningJob(jobId string) (*types.RemoteSigningJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.jobs[jobId]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return persistence.UnmarshalSigningJob(data)
}

// ListSigningJobs returns all signing jobs sorted by creation time.
func (m *MemoryPersistence) ListSigningJobs() ([]*types.RemoteSigningJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	jobs := make([]*types.RemoteSigningJob, 0, len(m.jobs))
	for id, data := range m.jobs {
		job, err := persistence.UnmarshalSigningJob(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt signing job %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	persistence.SortSigningJobs(jobs)
	return jobs, nil
}

// SaveMonitorResult persists a monitor result.
func (m *MemoryPersistence) SaveMonitorResult(result *types.MonitorResult) error {
	data, err := persistence.MarshalMonitorResult(result)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.results[result.TransactionId] = data
	return nil
}

// LoadMonitorResult retrieves a monitor result by transaction id.
func (m *MemoryPersistence) LoadMonitorResult(transactionId string) (*types.MonitorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.results[transactionId]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalMonitorResult(data)
}

// Close shuts down the journal. Idempotent.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the journal is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
