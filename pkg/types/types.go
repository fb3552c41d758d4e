package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DomainTypeName is the reserved EIP-712 type name describing the domain separator.
const DomainTypeName = "EIP712Domain"

// AccountIdentity is the chain address bound to a custody vault/asset pair.
// It is resolved once and never mutated afterwards.
type AccountIdentity struct {
	VaultAccountId string         `json:"vaultAccountId"`
	AssetSymbol    string         `json:"assetSymbol"`
	Address        common.Address `json:"address"`
}

// SigningRequest is an EIP-712 structured data request. PrimaryType is optional;
// when empty it is derived from Types.
type SigningRequest struct {
	Domain      apitypes.TypedDataDomain  `json:"domain"`
	Types       apitypes.Types            `json:"types"`
	PrimaryType string                    `json:"primaryType,omitempty"`
	Message     apitypes.TypedDataMessage `json:"message"`
}

// TypedData converts the request into the go-ethereum representation. The
// request must already carry its domain type and primary type.
func (r *SigningRequest) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types:       r.Types,
		PrimaryType: r.PrimaryType,
		Domain:      r.Domain,
		Message:     r.Message,
	}
}

// RemoteSigningJob is a single signing job submitted to the custody service.
type RemoteSigningJob struct {
	JobId          string          `json:"jobId"`
	VaultAccountId string          `json:"vaultAccountId"`
	AssetSymbol    string          `json:"assetSymbol"`
	Payload        *SigningRequest `json:"payload"`
	Note           string          `json:"note"`
	// Label is the audit summary of Payload. It is informational only.
	Label     string        `json:"label,omitempty"`
	Status    CustodyStatus `json:"status"`
	SubStatus string        `json:"subStatus,omitempty"`
	Messages  []string      `json:"messages,omitempty"`
	// LastError is the error that ended polling, or the most recent retried one.
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransactionRecord is the custody-side view of a transaction, mutated only by status polls.
type TransactionRecord struct {
	TransactionId  string        `json:"transactionId"`
	Status         CustodyStatus `json:"status"`
	TxHash         string        `json:"txHash,omitempty"`
	SubStatus      string        `json:"subStatus,omitempty"`
	SystemMessages []string      `json:"systemMessages,omitempty"`
}

// MonitorResult is the terminal output of transaction monitoring. Error is nil on
// success; otherwise it is a *CustodyFailureError, *ChainConfirmationError or
// *MonitorTimeoutError.
type MonitorResult struct {
	TransactionId      string        `json:"transactionId"`
	FinalCustodyStatus CustodyStatus `json:"finalCustodyStatus"`
	TxHash             string        `json:"txHash,omitempty"`
	BlockHeight        *uint64       `json:"blockHeight,omitempty"`
	Confirmations      *uint64       `json:"confirmations,omitempty"`
	Error              error         `json:"-"`
	ErrorMessage       string        `json:"error,omitempty"`
	CompletedAt        time.Time     `json:"completedAt"`
}

// Failed reports whether monitoring ended in any kind of failure.
func (r *MonitorResult) Failed() bool {
	return r.Error != nil
}

// SetError records err on the result, keeping the serializable message in sync.
func (r *MonitorResult) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	} else {
		r.ErrorMessage = ""
	}
}
