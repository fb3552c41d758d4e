package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/chain"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/logger"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/metrics"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	badgerPersistence "github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence/badger"
	memoryPersistence "github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence/memory"
	redisPersistence "github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const metricsEndpoint = "/metrics"

// runtime holds the process-wide collaborators shared by every command.
type runtime struct {
	logger        *zap.Logger
	metrics       *metrics.Metrics
	journal       persistence.IJournalPersistence
	metricsServer *http.Server
}

func newRuntime(c *cli.Context) (*runtime, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	rt := &runtime{
		logger:  l,
		metrics: metrics.NewMetricsWithRegistry(registry),
	}

	journal, err := newJournal(persistenceConfigFromFlags(c), l)
	if err != nil {
		return nil, err
	}
	rt.journal = journal

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle(metricsEndpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		rt.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			l.Sugar().Infow("Prometheus metrics available", "listen_addr", addr, "endpoint", metricsEndpoint)
			if err := rt.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Sugar().Errorw("Metrics server failure", "error", err)
			}
		}()
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.metricsServer.Shutdown(ctx)
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Sugar().Warnw("Failed to close journal", "error", err)
		}
	}
	_ = rt.logger.Sync()
}

func persistenceConfigFromFlags(c *cli.Context) *config.PersistenceConfig {
	return &config.PersistenceConfig{
		Type:           config.PersistenceType(c.String("persistence-type")),
		DataPath:       c.String("data-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
}

// newJournal opens the audit journal backend selected by cfg.
func newJournal(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IJournalPersistence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persistence config: %w", err)
	}
	switch cfg.Type {
	case config.PersistenceType_Memory:
		return memoryPersistence.NewMemoryPersistence(), nil
	case config.PersistenceType_Badger:
		j, err := badgerPersistence.NewBadgerPersistence(cfg.DataPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger journal: %w", err)
		}
		return j, nil
	case config.PersistenceType_Redis:
		j, err := redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis journal: %w", err)
		}
		return j, nil
	}
	return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
}

func custodyConfigFromFlags(c *cli.Context) (*config.CustodyConfig, error) {
	cfg := config.DefaultCustodyConfig()

	cfg.BaseUrl = c.String("base-url")
	if cfg.BaseUrl == "" {
		u, err := config.GetBaseUrlForEnvironment(config.CustodyEnvironment(c.String("environment")))
		if err != nil {
			return nil, err
		}
		cfg.BaseUrl = u
	}
	cfg.ApiKey = c.String("api-key")
	cfg.RateLimit = c.Float64("rate-limit")

	if path := c.String("secret-key-path"); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read custody secret key: %w", err)
		}
		cfg.SecretKeyPem = pem
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid custody config: %w", err)
	}
	return cfg, nil
}

func newCustodyClient(c *cli.Context, l *zap.Logger) (*custody.Client, error) {
	cfg, err := custodyConfigFromFlags(c)
	if err != nil {
		return nil, err
	}
	client, err := custody.NewClient(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create custody client: %w", err)
	}
	return client, nil
}

func pollConfigFromFlags(c *cli.Context) config.PollConfig {
	return config.PollConfig{
		Interval:    c.Duration("poll-interval"),
		MaxAttempts: c.Int("max-poll-attempts"),
	}
}

// newChainQuery returns nil when no RPC endpoint is configured.
func newChainQuery(rpcUrl string, l *zap.Logger) (chain.IChainQuery, error) {
	if rpcUrl == "" {
		return nil, nil
	}
	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   rpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)

	l1Client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, fmt.Errorf("failed to get Ethereum client: %w", err)
	}
	query, err := chain.NewEthChainQuery(l1Client, l)
	if err != nil {
		return nil, err
	}
	return query, nil
}
