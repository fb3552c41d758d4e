package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixSigningJob    = "job:"
	keyPrefixMonitorResult = "monitor:"
	keySchemaVersion       = "metadata:schema_version"
	currentSchemaVersion   = "v1"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerPersistence is a disk-backed journal using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IJournalPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the journal at dataPath with SyncWrites
// enabled and starts background value-log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newJournalLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger journal initialized", "path", absPath)
	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}
		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerPersistence) set(key string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get returns nil data when key does not exist.
func (b *BadgerPersistence) get(key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// SaveSigningJob persists a signing job
func (b *BadgerPersistence) SaveSigningJob(job *types.RemoteSigningJob) error {
	data, err := persistence.MarshalSigningJob(job)
	if err != nil {
		return err
	}
	if err := b.set(keyPrefixSigningJob+job.JobId, data); err != nil {
		return fmt.Errorf("failed to save signing job %s: %w", job.JobId, err)
	}
	return nil
}

// LoadSigningJob retrieves a signing job
func (b *BadgerPersistence) LoadSigningJob(jobId string) (*types.RemoteSigningJob, error) {
	data, err := b.get(keyPrefixSigningJob + jobId)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing job %s: %w", jobId, err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalSigningJob(data)
}

// ListSigningJobs returns all signing jobs sorted by creation time
func (b *BadgerPersistence) ListSigningJobs() ([]*types.RemoteSigningJob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	jobs := []*types.RemoteSigningJob{}
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixSigningJob)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			job, err := persistence.UnmarshalSigningJob(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal signing job, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list signing jobs: %w", err)
	}

	persistence.SortSigningJobs(jobs)
	return jobs, nil
}

// SaveMonitorResult persists a monitor result
func (b *BadgerPersistence) SaveMonitorResult(result *types.MonitorResult) error {
	data, err := persistence.MarshalMonitorResult(result)
	if err != nil {
		return err
	}
	if err := b.set(keyPrefixMonitorResult+result.TransactionId, data); err != nil {
		return fmt.Errorf("failed to save monitor result %s: %w", result.TransactionId, err)
	}
	return nil
}

// LoadMonitorResult retrieves a monitor result
func (b *BadgerPersistence) LoadMonitorResult(transactionId string) (*types.MonitorResult, error) {
	data, err := b.get(keyPrefixMonitorResult + transactionId)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor result %s: %w", transactionId, err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalMonitorResult(data)
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger journal closed")
	return nil
}

// HealthCheck verifies the database is readable and carries a schema version
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
