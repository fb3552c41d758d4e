// Package monitor tracks a custody transaction through its custody lifecycle
// and, optionally, through on-chain confirmation.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/chain"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/metrics"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/poller"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	custodyLoopName = "custody_transaction"
	chainLoopName   = "chain_confirmation"
)

// Observer receives monitor metrics. *metrics.Metrics implements it.
type Observer interface {
	ObservePollAttempt(loop string)
	ObserveTransientError(loop string)
	ObserveMonitorOutcome(outcome string)
}

// MonitorOptions tune a single Watch call. A nil *MonitorOptions is valid.
type MonitorOptions struct {
	// ChainQuery enables phase two. Without it monitoring ends at the custody outcome.
	ChainQuery chain.IChainQuery
	// RequiredConfirmations overrides the configured default when non-zero.
	RequiredConfirmations uint64
	// PollInterval overrides the configured interval when non-zero.
	PollInterval time.Duration
	// OnStatusChange is called with a snapshot whenever the custody status or
	// chain hash changes.
	OnStatusChange func(record types.TransactionRecord)
}

type MonitorConfig struct {
	Monitor  *config.MonitorConfig
	Client   custody.ICustodyClient
	Journal  persistence.IJournalPersistence
	Observer Observer
	Logger   *zap.Logger
}

// Monitor watches custody transactions. Each Watch call is independent; a
// single Monitor may serve any number of concurrent calls.
type Monitor struct {
	cfg      *config.MonitorConfig
	client   custody.ICustodyClient
	journal  persistence.IJournalPersistence
	observer Observer
	logger   *zap.Logger
}

func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Monitor == nil {
		return nil, fmt.Errorf("monitor config is required")
	}
	if err := cfg.Monitor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("custody client is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Monitor{
		cfg:      cfg.Monitor,
		client:   cfg.Client,
		journal:  cfg.Journal,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}, nil
}

// watch is the state of one Watch call.
type watch struct {
	m        *Monitor
	opts     MonitorOptions
	pollCfg  config.PollConfig
	required uint64
	record   types.TransactionRecord
}

// Watch follows transactionId until monitoring reaches a terminal outcome.
//
// The returned result is always non-nil for a non-empty transactionId, and the
// returned error is the same value as result.Error: nil on success, otherwise
// a *types.CustodyFailureError, *types.CustodyQueryError,
// *types.ChainConfirmationError or *types.MonitorTimeoutError. Custody query
// errors other than *types.TransientError end monitoring on the first attempt.
func (m *Monitor) Watch(ctx context.Context, transactionId string, opts *MonitorOptions) (*types.MonitorResult, error) {
	if transactionId == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	w := &watch{
		m:        m,
		pollCfg:  m.cfg.Poll,
		required: m.cfg.RequiredConfirmations,
		record: types.TransactionRecord{
			TransactionId: transactionId,
			Status:        types.CustodyStatus_Submitted,
		},
	}
	if opts != nil {
		w.opts = *opts
	}
	if w.opts.PollInterval > 0 {
		w.pollCfg.Interval = w.opts.PollInterval
	}
	if w.opts.RequiredConfirmations > 0 {
		w.required = w.opts.RequiredConfirmations
	}
	if w.required == 0 {
		w.required = 1
	}

	m.logger.Sugar().Infow("Monitoring custody transaction",
		"transaction_id", transactionId,
		"required_confirmations", w.required,
		"chain_phase", w.opts.ChainQuery != nil,
	)

	result := w.run(ctx)
	result.CompletedAt = time.Now().UTC()

	if m.journal != nil {
		if err := m.journal.SaveMonitorResult(result); err != nil {
			m.logger.Sugar().Warnw("Failed to journal monitor result", "transaction_id", transactionId, "error", err)
		}
	}
	if m.observer != nil {
		m.observer.ObserveMonitorOutcome(outcomeOf(result.Error))
	}

	if result.Error != nil {
		m.logger.Sugar().Warnw("Monitoring ended with failure",
			"transaction_id", transactionId,
			"status", result.FinalCustodyStatus,
			"tx_hash", result.TxHash,
			"error", result.Error,
		)
		return result, result.Error
	}
	m.logger.Sugar().Infow("Monitoring completed",
		"transaction_id", transactionId,
		"tx_hash", result.TxHash,
		"block_height", result.BlockHeight,
		"confirmations", result.Confirmations,
	)
	return result, nil
}

func (w *watch) run(ctx context.Context) *types.MonitorResult {
	result := &types.MonitorResult{TransactionId: w.record.TransactionId}

	err := w.custodyPhase(ctx)
	result.FinalCustodyStatus = w.record.Status
	result.TxHash = w.record.TxHash
	if err != nil {
		result.SetError(err)
		return result
	}

	if w.opts.ChainQuery == nil || w.record.TxHash == "" {
		w.m.logger.Sugar().Debugw("Skipping chain confirmation",
			"transaction_id", w.record.TransactionId,
			"has_chain_query", w.opts.ChainQuery != nil,
			"has_tx_hash", w.record.TxHash != "",
		)
		return result
	}

	height, confirmations, err := w.chainPhase(ctx)
	if height > 0 {
		result.BlockHeight = &height
		result.Confirmations = &confirmations
	}
	result.SetError(err)
	return result
}

// custodyPhase polls the custody service until the transaction is terminal.
func (w *watch) custodyPhase(ctx context.Context) error {
	txId := w.record.TransactionId
	p := poller.NewPoller(custodyLoopName, w.pollCfg, w.m.logger, w.pollObserver())

	res, err := p.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		resp, err := w.m.client.GetTransaction(ctx, txId)
		if err != nil {
			if types.IsTransient(err) || ctx.Err() != nil {
				return false, err
			}
			return false, poller.Permanent(&types.CustodyQueryError{
				Operation:  "get transaction",
				Id:         txId,
				Attempt:    attempt,
				LastStatus: w.record.Status,
				Err:        err,
			})
		}
		if resp == nil {
			return false, types.NewTransientError("get transaction", fmt.Errorf("empty response for transaction %s", txId))
		}
		w.update(resp.ToRecord())

		switch {
		case w.record.Status.IsSuccess():
			return true, nil
		case w.record.Status.IsFailure():
			return false, poller.Permanent(&types.CustodyFailureError{
				TransactionId: txId,
				Status:        w.record.Status,
				SubStatus:     w.record.SubStatus,
				Messages:      w.record.SystemMessages,
			})
		}
		return false, nil
	})
	if err == nil {
		return nil
	}

	var (
		custodyErr *types.CustodyFailureError
		queryErr   *types.CustodyQueryError
	)
	switch {
	case errors.As(err, &custodyErr):
		return custodyErr
	case errors.As(err, &queryErr):
		return queryErr
	case errors.Is(err, poller.ErrExhausted):
		return &types.MonitorTimeoutError{
			TransactionId: txId,
			Attempts:      w.pollCfg.MaxAttempts,
			Interval:      w.pollCfg.Interval,
			LastStatus:    w.record.Status,
		}
	}
	return &types.MonitorTimeoutError{
		TransactionId: txId,
		Attempts:      res.Attempts,
		Interval:      w.pollCfg.Interval,
		LastStatus:    w.record.Status,
		Err:           err,
	}
}

// update merges a fresh custody snapshot. A hash reported once is kept even if
// a later response omits it.
func (w *watch) update(next *types.TransactionRecord) {
	changed := next.Status != w.record.Status || (next.TxHash != "" && next.TxHash != w.record.TxHash)

	w.record.Status = next.Status
	w.record.SubStatus = next.SubStatus
	w.record.SystemMessages = next.SystemMessages
	if next.TxHash != "" {
		w.record.TxHash = next.TxHash
	}

	if !changed {
		return
	}
	w.m.logger.Sugar().Debugw("Custody transaction changed",
		"transaction_id", w.record.TransactionId,
		"status", w.record.Status,
		"tx_hash", w.record.TxHash,
	)
	if w.opts.OnStatusChange != nil {
		snapshot := w.record
		snapshot.SystemMessages = append([]string(nil), w.record.SystemMessages...)
		w.opts.OnStatusChange(snapshot)
	}
}

// chainPhase waits for the receipt and the required confirmations. It returns
// the mined height and the last computed confirmation count.
func (w *watch) chainPhase(ctx context.Context) (uint64, uint64, error) {
	chainErr := func(reason string, confirmations uint64, err error) *types.ChainConfirmationError {
		return &types.ChainConfirmationError{
			TransactionId: w.record.TransactionId,
			TxHash:        w.record.TxHash,
			Confirmations: confirmations,
			Required:      w.required,
			Reason:        reason,
			Err:           err,
		}
	}

	if !isTxHash(w.record.TxHash) {
		return 0, 0, chainErr("custody reported a malformed transaction hash", 0, nil)
	}
	hash := common.HexToHash(w.record.TxHash)
	query := w.opts.ChainQuery

	var (
		receipt       *chain.Receipt
		confirmations uint64
		consecutive   int
	)
	// chainFailure counts a chain query error and turns it permanent once the
	// consecutive error budget is spent.
	chainFailure := func(err error) error {
		consecutive++
		if consecutive >= w.m.cfg.MaxChainErrors {
			return poller.Permanent(chainErr(fmt.Sprintf("chain query failed %d times in a row", consecutive), confirmations, err))
		}
		return err
	}

	p := poller.NewPoller(chainLoopName, w.pollCfg, w.m.logger, w.pollObserver())
	res, err := p.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		if receipt == nil {
			r, err := query.GetReceipt(ctx, hash)
			if err != nil {
				return false, chainFailure(err)
			}
			consecutive = 0
			if r == nil {
				return false, nil
			}
			receipt = r
			if r.Reverted() {
				return false, poller.Permanent(chainErr("transaction reverted", 0, nil))
			}
			w.m.logger.Sugar().Debugw("Transaction mined",
				"transaction_id", w.record.TransactionId,
				"tx_hash", w.record.TxHash,
				"block_number", r.BlockNumber,
			)
		}

		height, err := query.GetChainHeight(ctx)
		if err != nil {
			return false, chainFailure(err)
		}
		consecutive = 0
		confirmations = confirmationsAt(receipt.BlockNumber, height)
		return confirmations >= w.required, nil
	})

	var minedAt uint64
	if receipt != nil {
		minedAt = receipt.BlockNumber
	}
	if err == nil {
		return minedAt, confirmations, nil
	}

	var confErr *types.ChainConfirmationError
	switch {
	case errors.As(err, &confErr):
		confErr.Confirmations = confirmations
		return minedAt, confirmations, confErr
	case errors.Is(err, poller.ErrExhausted):
		reason := "receipt not found"
		if receipt != nil {
			reason = "insufficient confirmations"
		}
		return minedAt, confirmations, chainErr(reason, confirmations, res.LastError)
	}
	return minedAt, confirmations, chainErr("aborted", confirmations, err)
}

func (w *watch) pollObserver() poller.Observer {
	if w.m.observer == nil {
		return nil
	}
	return w.m.observer
}

// confirmationsAt counts blocks from minedAt through height, inclusive. A node
// lagging behind the block that mined the receipt yields zero.
func confirmationsAt(minedAt, height uint64) uint64 {
	if height < minedAt {
		return 0
	}
	return height - minedAt + 1
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func outcomeOf(err error) string {
	var (
		custodyErr *types.CustodyFailureError
		queryErr   *types.CustodyQueryError
		chainErr   *types.ChainConfirmationError
		timeoutErr *types.MonitorTimeoutError
	)
	switch {
	case err == nil:
		return metrics.Outcome_Success
	case errors.As(err, &custodyErr):
		return metrics.Outcome_CustodyFailed
	case errors.As(err, &queryErr):
		return metrics.Outcome_QueryFailed
	case errors.As(err, &chainErr):
		return metrics.Outcome_ChainFailed
	case errors.As(err, &timeoutErr):
		if timeoutErr.Err != nil {
			return metrics.Outcome_Aborted
		}
		return metrics.Outcome_Timeout
	}
	return metrics.Outcome_Error
}
