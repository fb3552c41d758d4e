package custody

import (
	"context"
	"net/http"
)

// ICustodyClient defines the interface for interacting with the custody service.
// Core packages depend on this interface only, so tests can substitute fakes.
type ICustodyClient interface {
	// SetHttpClient allows setting a custom HTTP client, mainly for tests.
	SetHttpClient(client *http.Client)

	// ListAddresses returns the deposit addresses of a vault account for an asset,
	// following pagination until exhausted.
	ListAddresses(ctx context.Context, vaultAccountId, assetSymbol string) ([]VaultAddress, error)

	// CreateSigningJob submits a TYPED_MESSAGE signing job and returns its id.
	CreateSigningJob(ctx context.Context, req *CreateSigningJobRequest) (string, error)

	// GetJob fetches a signing job, including signed messages once completed.
	GetJob(ctx context.Context, jobId string) (*JobResponse, error)

	// GetTransaction fetches the status and chain hash of a custody transaction.
	GetTransaction(ctx context.Context, transactionId string) (*TransactionResponse, error)
}

// Compile-time check to ensure Client implements ICustodyClient
var _ ICustodyClient = (*Client)(nil)
