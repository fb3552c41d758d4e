package testutil

import (
	"context"
	"sync"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/chain"
	"github.com/ethereum/go-ethereum/common"
)

// MockChainQuery implements IChainQuery for testing. The chain height advances
// by BlockInterval on every GetChainHeight call, and a receipt becomes visible
// once the receipt lookup has been called MinedAfter times.
type MockChainQuery struct {
	mu sync.Mutex

	currentBlock  uint64
	BlockInterval uint64

	receipts   map[common.Hash]*chain.Receipt
	MinedAfter int

	// ReceiptErrs and HeightErrs are consumed one per call before normal answers.
	ReceiptErrs []error
	HeightErrs  []error

	receiptCalls int
	heightCalls  int
}

var _ chain.IChainQuery = (*MockChainQuery)(nil)

func NewMockChainQuery(currentBlock uint64) *MockChainQuery {
	return &MockChainQuery{
		currentBlock: currentBlock,
		receipts:     make(map[common.Hash]*chain.Receipt),
	}
}

// AddReceipt registers a receipt for txHash mined at blockNumber.
func (m *MockChainQuery) AddReceipt(txHash common.Hash, blockNumber uint64, status uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[txHash] = &chain.Receipt{TxHash: txHash, BlockNumber: blockNumber, Status: status}
}

func (m *MockChainQuery) GetReceipt(ctx context.Context, txHash common.Hash) (*chain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiptCalls++
	if len(m.ReceiptErrs) > 0 {
		err := m.ReceiptErrs[0]
		m.ReceiptErrs = m.ReceiptErrs[1:]
		return nil, err
	}
	if m.receiptCalls <= m.MinedAfter {
		return nil, nil
	}
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MockChainQuery) GetChainHeight(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heightCalls++
	if len(m.HeightErrs) > 0 {
		err := m.HeightErrs[0]
		m.HeightErrs = m.HeightErrs[1:]
		return 0, err
	}
	height := m.currentBlock
	m.currentBlock += m.BlockInterval
	return height, nil
}

// SetCurrentBlock sets the height returned by the next GetChainHeight call.
func (m *MockChainQuery) SetCurrentBlock(blockNumber uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentBlock = blockNumber
}

func (m *MockChainQuery) ReceiptCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receiptCalls
}

func (m *MockChainQuery) HeightCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heightCalls
}
