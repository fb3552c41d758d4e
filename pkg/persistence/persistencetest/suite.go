// Package persistencetest holds the behavioral test suite every journal backend must pass.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty journal for one subtest.
type Factory func(t *testing.T) persistence.IJournalPersistence

func newJob(id string, created time.Time) *types.RemoteSigningJob {
	return &types.RemoteSigningJob{
		JobId:          id,
		VaultAccountId: "0",
		AssetSymbol:    "ETH",
		Payload: &types.SigningRequest{
			Domain:      apitypes.TypedDataDomain{Name: "Exchange"},
			PrimaryType: "Order",
			Message:     apitypes.TypedDataMessage{"amount": "1"},
		},
		Label:     "order: buy 1",
		Status:    types.CustodyStatus_Submitted,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// RunJournalTests runs the shared suite against the backend built by factory.
func RunJournalTests(t *testing.T, factory Factory) {
	t.Run("SaveAndLoadSigningJob", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		job := newJob("job-save-load", time.Unix(1700000000, 0).UTC())
		require.NoError(t, j.SaveSigningJob(job))

		loaded, err := j.LoadSigningJob(job.JobId)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, job.JobId, loaded.JobId)
		assert.Equal(t, job.Label, loaded.Label)
		assert.Equal(t, job.Status, loaded.Status)
		assert.True(t, job.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		job := newJob("job-overwrite", time.Unix(1700000000, 0).UTC())
		require.NoError(t, j.SaveSigningJob(job))

		job.Status = types.CustodyStatus_Completed
		require.NoError(t, j.SaveSigningJob(job))

		loaded, err := j.LoadSigningJob(job.JobId)
		require.NoError(t, err)
		assert.Equal(t, types.CustodyStatus_Completed, loaded.Status)

		jobs, err := j.ListSigningJobs()
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("StoredJobIsIsolated", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		job := newJob("job-isolated", time.Unix(1700000000, 0).UTC())
		require.NoError(t, j.SaveSigningJob(job))
		job.Label = "mutated"

		loaded, err := j.LoadSigningJob(job.JobId)
		require.NoError(t, err)
		assert.Equal(t, "order: buy 1", loaded.Label)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		job, err := j.LoadSigningJob("does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, job)

		result, err := j.LoadMonitorResult("does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("ListSortedByCreation", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		base := time.Unix(1700000000, 0).UTC()
		require.NoError(t, j.SaveSigningJob(newJob("job-list-c", base.Add(2*time.Second))))
		require.NoError(t, j.SaveSigningJob(newJob("job-list-a", base)))
		require.NoError(t, j.SaveSigningJob(newJob("job-list-b", base.Add(time.Second))))

		jobs, err := j.ListSigningJobs()
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "job-list-a", jobs[0].JobId)
		assert.Equal(t, "job-list-b", jobs[1].JobId)
		assert.Equal(t, "job-list-c", jobs[2].JobId)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		jobs, err := j.ListSigningJobs()
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("SaveAndLoadMonitorResult", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		height, confirmations := uint64(100), uint64(1)
		result := &types.MonitorResult{
			TransactionId:      "tx-1",
			FinalCustodyStatus: types.CustodyStatus_Completed,
			TxHash:             "0xabc",
			BlockHeight:        &height,
			Confirmations:      &confirmations,
			CompletedAt:        time.Unix(1700000100, 0).UTC(),
		}
		require.NoError(t, j.SaveMonitorResult(result))

		loaded, err := j.LoadMonitorResult("tx-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, types.CustodyStatus_Completed, loaded.FinalCustodyStatus)
		assert.Equal(t, uint64(1), *loaded.Confirmations)
		assert.Empty(t, loaded.ErrorMessage)
	})

	t.Run("RejectsInvalidRecords", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		assert.Error(t, j.SaveSigningJob(nil))
		assert.Error(t, j.SaveSigningJob(&types.RemoteSigningJob{}))
		assert.Error(t, j.SaveMonitorResult(nil))
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		j := factory(t)
		defer func() { _ = j.Close() }()

		base := time.Unix(1700000000, 0).UTC()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, j.SaveSigningJob(newJob(fmt.Sprintf("job-concurrent-%02d", i), base.Add(time.Duration(i)*time.Second))))
			}(i)
		}
		wg.Wait()

		jobs, err := j.ListSigningJobs()
		require.NoError(t, err)
		assert.Len(t, jobs, 20)
	})

	t.Run("Close", func(t *testing.T) {
		j := factory(t)

		require.NoError(t, j.HealthCheck())
		require.NoError(t, j.Close())
		require.NoError(t, j.Close())

		assert.ErrorIs(t, j.HealthCheck(), persistence.ErrClosed)
		assert.ErrorIs(t, j.SaveSigningJob(newJob("job-closed", time.Now())), persistence.ErrClosed)
		_, err := j.LoadSigningJob("job-closed")
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = j.ListSigningJobs()
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = j.LoadMonitorResult("tx")
		assert.ErrorIs(t, err, persistence.ErrClosed)
	})
}
