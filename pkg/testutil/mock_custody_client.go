package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
)

// JobStep is one scripted GetJob answer.
type JobStep struct {
	Response *custody.JobResponse
	Err      error
}

// TxStep is one scripted GetTransaction answer.
type TxStep struct {
	Response *custody.TransactionResponse
	Err      error
}

// MockCustodyClient implements ICustodyClient for testing. GetJob and
// GetTransaction replay their scripts in order and repeat the last step once
// the script runs out.
type MockCustodyClient struct {
	mu sync.Mutex

	Addresses []custody.VaultAddress
	ListErr   error

	JobId string
	// UniqueJobIds suffixes JobId with a per-submission counter.
	UniqueJobIds bool
	CreateErr    error
	// OnCreate runs after a job is recorded, e.g. to script a signature over the payload.
	OnCreate func(req *custody.CreateSigningJobRequest)

	jobSteps []JobStep
	txSteps  []TxStep

	listCalls   int
	getJobCalls int
	getTxCalls  int
	created     []*custody.CreateSigningJobRequest
}

var _ custody.ICustodyClient = (*MockCustodyClient)(nil)

func NewMockCustodyClient() *MockCustodyClient {
	return &MockCustodyClient{JobId: "job-1"}
}

// ScriptJob replaces the GetJob script.
func (m *MockCustodyClient) ScriptJob(steps ...JobStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobSteps = steps
}

// ScriptTransaction replaces the GetTransaction script.
func (m *MockCustodyClient) ScriptTransaction(steps ...TxStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txSteps = steps
}

func (m *MockCustodyClient) SetHttpClient(*http.Client) {}

func (m *MockCustodyClient) ListAddresses(ctx context.Context, vaultAccountId, assetSymbol string) ([]custody.VaultAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]custody.VaultAddress(nil), m.Addresses...), nil
}

func (m *MockCustodyClient) CreateSigningJob(ctx context.Context, req *custody.CreateSigningJobRequest) (string, error) {
	m.mu.Lock()
	if m.CreateErr != nil {
		m.mu.Unlock()
		return "", m.CreateErr
	}
	m.created = append(m.created, req)
	hook := m.OnCreate
	jobId := m.JobId
	if m.UniqueJobIds {
		jobId = fmt.Sprintf("%s-%d", m.JobId, len(m.created))
	}
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return jobId, nil
}

func (m *MockCustodyClient) GetJob(ctx context.Context, jobId string) (*custody.JobResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobSteps) == 0 {
		return nil, fmt.Errorf("no job script for %s", jobId)
	}
	idx := m.getJobCalls
	if idx >= len(m.jobSteps) {
		idx = len(m.jobSteps) - 1
	}
	m.getJobCalls++
	step := m.jobSteps[idx]
	return step.Response, step.Err
}

func (m *MockCustodyClient) GetTransaction(ctx context.Context, transactionId string) (*custody.TransactionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txSteps) == 0 {
		return nil, fmt.Errorf("no transaction script for %s", transactionId)
	}
	idx := m.getTxCalls
	if idx >= len(m.txSteps) {
		idx = len(m.txSteps) - 1
	}
	m.getTxCalls++
	step := m.txSteps[idx]
	return step.Response, step.Err
}

func (m *MockCustodyClient) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *MockCustodyClient) GetJobCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getJobCalls
}

func (m *MockCustodyClient) GetTransactionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTxCalls
}

// Created returns every submitted signing job request.
func (m *MockCustodyClient) Created() []*custody.CreateSigningJobRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*custody.CreateSigningJobRequest(nil), m.created...)
}

// Job builds a JobResponse in status with no signature.
func Job(status string) JobStep {
	return JobStep{Response: &custody.JobResponse{Id: "job-1", Status: status}}
}

// Tx builds a TransactionResponse in status carrying txHash.
func Tx(status, txHash string) TxStep {
	return TxStep{Response: &custody.TransactionResponse{Id: "tx-1", Status: status, TxHash: txHash}}
}
