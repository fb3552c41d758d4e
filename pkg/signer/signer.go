// Package signer produces EIP-712 signatures by delegating to a custody service.
package signer

import (
	"context"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ISigner is a signing-only identity backed by a remote key holder.
type ISigner interface {
	// GetIdentity returns the address the signer signs for. Resolved once, then cached.
	GetIdentity(ctx context.Context) (*types.AccountIdentity, error)

	// SignTypedData signs an EIP-712 request and returns a canonical 65 byte signature.
	SignTypedData(ctx context.Context, req *types.SigningRequest) (types.CanonicalSignature, error)

	// SignStructuredData is SignTypedData with the primary type derived from typeSchema.
	SignStructuredData(ctx context.Context, domain apitypes.TypedDataDomain, typeSchema apitypes.Types, message apitypes.TypedDataMessage) (types.CanonicalSignature, error)

	// VerifyTypedData reports whether sig over req recovers to GetIdentity's address.
	VerifyTypedData(ctx context.Context, req *types.SigningRequest, sig types.CanonicalSignature) (bool, error)

	// The identity cannot execute anything on chain. These always return
	// *types.UnsupportedOperationError.

	SignTransaction(ctx context.Context, tx *ethTypes.Transaction) (*ethTypes.Transaction, error)
	SignMessage(ctx context.Context, message []byte) (types.CanonicalSignature, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GetNonce(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethTypes.Transaction) (common.Hash, error)
	ResolveName(ctx context.Context, name string) (common.Address, error)
}

// Observer receives signing metrics. *metrics.Metrics implements it.
type Observer interface {
	ObservePollAttempt(loop string)
	ObserveTransientError(loop string)
	ObserveSigningSubmitted()
	ObserveSigningOutcome(outcome string, elapsed time.Duration)
	ObserveIdentityResolution()
}
