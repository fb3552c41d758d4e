package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
)

// ErrClosed is returned by every operation on a closed journal.
var ErrClosed = errors.New("persistence layer is closed")

// MarshalSigningJob serializes a RemoteSigningJob to JSON bytes.
func MarshalSigningJob(job *types.RemoteSigningJob) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("cannot marshal nil RemoteSigningJob")
	}
	if job.JobId == "" {
		return nil, fmt.Errorf("cannot marshal RemoteSigningJob without a job id")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RemoteSigningJob to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalSigningJob deserializes a RemoteSigningJob from JSON bytes.
func UnmarshalSigningJob(data []byte) (*types.RemoteSigningJob, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var job types.RemoteSigningJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RemoteSigningJob: %w", err)
	}
	return &job, nil
}

// MarshalMonitorResult serializes a MonitorResult to JSON bytes. The error value
// itself is not serialized; ErrorMessage carries its text.
func MarshalMonitorResult(result *types.MonitorResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("cannot marshal nil MonitorResult")
	}
	if result.TransactionId == "" {
		return nil, fmt.Errorf("cannot marshal MonitorResult without a transaction id")
	}

	snapshot := *result
	if snapshot.Error != nil && snapshot.ErrorMessage == "" {
		snapshot.ErrorMessage = snapshot.Error.Error()
	}
	return json.Marshal(&snapshot)
}

// UnmarshalMonitorResult deserializes a MonitorResult from JSON bytes.
func UnmarshalMonitorResult(data []byte) (*types.MonitorResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var result types.MonitorResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to MonitorResult: %w", err)
	}
	return &result, nil
}

// SortSigningJobs orders jobs by CreatedAt, then JobId for stability.
func SortSigningJobs(jobs []*types.RemoteSigningJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobId < jobs[j].JobId
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
