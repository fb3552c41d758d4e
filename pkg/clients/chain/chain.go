package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Receipt is the inclusion record of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	// Status is 1 for success and 0 for a reverted transaction.
	Status uint64
}

func (r *Receipt) Reverted() bool {
	return r.Status == ethTypes.ReceiptStatusFailed
}

// IChainQuery is the read-only chain collaborator used to confirm inclusion.
type IChainQuery interface {
	// GetReceipt returns nil, nil when the transaction is not mined yet.
	GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	GetChainHeight(ctx context.Context) (uint64, error)
}

// EthReader is the subset of *ethclient.Client used by EthChainQuery.
type EthReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethTypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthChainQuery answers chain queries through an Ethereum JSON-RPC client.
type EthChainQuery struct {
	client EthReader
	logger *zap.Logger
}

var _ IChainQuery = (*EthChainQuery)(nil)

func NewEthChainQuery(client EthReader, logger *zap.Logger) (*EthChainQuery, error) {
	if client == nil {
		return nil, fmt.Errorf("ethereum client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &EthChainQuery{client: client, logger: logger}, nil
}

func (q *EthChainQuery) GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	receipt, err := q.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			q.logger.Sugar().Debugw("Transaction not mined yet", "tx_hash", txHash.Hex())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), err)
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, nil
	}
	return &Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      receipt.Status,
	}, nil
}

func (q *EthChainQuery) GetChainHeight(ctx context.Context) (uint64, error) {
	height, err := q.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return height, nil
}
