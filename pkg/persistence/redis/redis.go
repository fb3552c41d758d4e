package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixSigningJob    = "custody:job:"
	keyPrefixMonitorResult = "custody:monitor:"
	keySchemaVersion       = "custody:metadata:schema_version"
	currentSchemaVersion   = "v1"

	// Sorted set of job ids scored by creation time, used for listing.
	keyIndexSigningJobs = "custody:jobs:index"

	operationTimeout = 5 * time.Second
)

// RedisPersistence is a journal shared by every signer pointed at the same Redis.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IJournalPersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "desk-a:" gives "desk-a:custody:job:123".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis journal initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// SETNX keeps concurrent first starts from racing each other.
	if err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// SaveSigningJob persists a signing job and indexes it by creation time
func (r *RedisPersistence) SaveSigningJob(job *types.RemoteSigningJob) error {
	data, err := persistence.MarshalSigningJob(job)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixSigningJob+job.JobId), data, 0)
	pipe.ZAdd(ctx, r.prefixKey(keyIndexSigningJobs), redis.Z{
		Score:  float64(job.CreatedAt.UnixNano()),
		Member: job.JobId,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save signing job %s: %w", job.JobId, err)
	}
	return nil
}

// LoadSigningJob retrieves a signing job
func (r *RedisPersistence) LoadSigningJob(jobId string) (*types.RemoteSigningJob, error) {
	data, err := r.get(keyPrefixSigningJob + jobId)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing job %s: %w", jobId, err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalSigningJob(data)
}

// ListSigningJobs returns all signing jobs sorted by creation time
func (r *RedisPersistence) ListSigningJobs() ([]*types.RemoteSigningJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keyIndexSigningJobs)
	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list signing job ids: %w", err)
	}
	if len(ids) == 0 {
		return []*types.RemoteSigningJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixSigningJob + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing jobs: %w", err)
	}

	jobs := make([]*types.RemoteSigningJob, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Indexed but missing - clean up the index
			r.client.ZRem(ctx, indexKey, ids[i])
			continue
		}
		str, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for signing job, skipping", "job_id", ids[i])
			continue
		}
		job, err := persistence.UnmarshalSigningJob([]byte(str))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal signing job, skipping", "job_id", ids[i], "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	persistence.SortSigningJobs(jobs)
	return jobs, nil
}

// SaveMonitorResult persists a monitor result
func (r *RedisPersistence) SaveMonitorResult(result *types.MonitorResult) error {
	data, err := persistence.MarshalMonitorResult(result)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefixKey(keyPrefixMonitorResult+result.TransactionId), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save monitor result %s: %w", result.TransactionId, err)
	}
	return nil
}

// LoadMonitorResult retrieves a monitor result
func (r *RedisPersistence) LoadMonitorResult(transactionId string) (*types.MonitorResult, error) {
	data, err := r.get(keyPrefixMonitorResult + transactionId)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor result %s: %w", transactionId, err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalMonitorResult(data)
}

// get returns nil data when key does not exist.
func (r *RedisPersistence) get(key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// Close closes the Redis client. Idempotent.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis journal closed")
	return nil
}

// HealthCheck pings Redis and verifies the schema version exists
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
