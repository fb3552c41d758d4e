package persistence

import "github.com/Layr-Labs/eigenx-custody-signer/pkg/types"

// IJournalPersistence is the audit journal of signing jobs and monitoring outcomes.
// All implementations must be thread-safe; signers and monitors write concurrently.
//
// The journal never stores signature bytes, only job metadata and outcomes.
type IJournalPersistence interface {
	// Signing Jobs

	// SaveSigningJob persists a signing job keyed by JobId, overwriting any
	// earlier record of the same job. Called on submission and again on terminal status.
	SaveSigningJob(job *types.RemoteSigningJob) error

	// LoadSigningJob retrieves a signing job by id.
	// Returns nil if the job doesn't exist, error only on storage failure.
	LoadSigningJob(jobId string) (*types.RemoteSigningJob, error)

	// ListSigningJobs returns all persisted jobs sorted by CreatedAt (ascending).
	// Returns empty slice if no jobs exist, error only on storage failure.
	ListSigningJobs() ([]*types.RemoteSigningJob, error)

	// Monitor Results

	// SaveMonitorResult persists the terminal result of monitoring a transaction,
	// keyed by TransactionId.
	SaveMonitorResult(result *types.MonitorResult) error

	// LoadMonitorResult retrieves a monitor result by transaction id.
	// Returns nil if none exists, error only on storage failure.
	LoadMonitorResult(transactionId string) (*types.MonitorResult, error)

	// Lifecycle Management

	// Close cleanly shuts down the journal.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the journal is operational.
	HealthCheck() error
}
