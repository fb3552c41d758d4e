package custody

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	operationTypedMessage = "TYPED_MESSAGE"
	messageTypeEIP712     = "EIP712"
	peerTypeVaultAccount  = "VAULT_ACCOUNT"
)

// VaultAddress is a deposit address of a vault account.
type VaultAddress struct {
	AssetId           string `json:"assetId"`
	Address           string `json:"address"`
	Description       string `json:"description,omitempty"`
	Type              string `json:"type,omitempty"`
	LegacyAddress     string `json:"legacyAddress,omitempty"`
	Bip44AddressIndex int    `json:"bip44AddressIndex,omitempty"`
}

type listAddressesResponse struct {
	Addresses []VaultAddress `json:"addresses"`
	Paging    struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"paging"`
}

// CreateSigningJobRequest describes a typed-data signing job.
type CreateSigningJobRequest struct {
	VaultAccountId string
	AssetSymbol    string
	TypedData      apitypes.TypedData
	Note           string
	// ExternalId makes submission idempotent on the custody side. Generated when empty.
	ExternalId string
}

type transferPeer struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

type rawMessage struct {
	Content apitypes.TypedData `json:"content"`
	Type    string             `json:"type"`
}

type rawMessageData struct {
	Messages []rawMessage `json:"messages"`
}

type extraParameters struct {
	RawMessageData rawMessageData `json:"rawMessageData"`
}

type createTransactionRequest struct {
	Operation       string          `json:"operation"`
	AssetId         string          `json:"assetId"`
	Source          transferPeer    `json:"source"`
	Note            string          `json:"note,omitempty"`
	ExternalTxId    string          `json:"externalTxId,omitempty"`
	ExtraParameters extraParameters `json:"extraParameters"`
}

type createTransactionResponse struct {
	Id     string `json:"id"`
	Status string `json:"status"`
}

// SignedMessage is one signed entry of a completed TYPED_MESSAGE job. Signature
// is kept raw; callers decode it with signature.NormalizeJSON.
type SignedMessage struct {
	Content   json.RawMessage `json:"content,omitempty"`
	Algorithm string          `json:"algorithm,omitempty"`
	Signature json.RawMessage `json:"signature"`
	PublicKey string          `json:"publicKey,omitempty"`
}

// JobResponse is the custody view of a signing job.
type JobResponse struct {
	Id             string          `json:"id"`
	Status         string          `json:"status"`
	SubStatus      string          `json:"subStatus,omitempty"`
	SignedMessages []SignedMessage `json:"signedMessages,omitempty"`
	SystemMessages SystemMessages  `json:"systemMessages,omitempty"`
}

// TransactionResponse is the custody view of an arbitrary transaction.
type TransactionResponse struct {
	Id             string         `json:"id"`
	Status         string         `json:"status"`
	SubStatus      string         `json:"subStatus,omitempty"`
	TxHash         string         `json:"txHash,omitempty"`
	SystemMessages SystemMessages `json:"systemMessages,omitempty"`
}

// SystemMessages are diagnostic strings attached by custody. The API returns a
// single {type, message} object, a list of them, or a list of plain strings,
// depending on version.
type SystemMessages []string

type systemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m systemMessage) String() string {
	if m.Type == "" {
		return m.Message
	}
	return fmt.Sprintf("%s: %s", m.Type, m.Message)
}

func (s *SystemMessages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	switch data[0] {
	case '{':
		var m systemMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if m.Message != "" {
			*s = SystemMessages{m.String()}
		}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(SystemMessages, 0, len(items))
		for _, item := range items {
			var str string
			if err := json.Unmarshal(item, &str); err == nil {
				out = append(out, str)
				continue
			}
			var m systemMessage
			if err := json.Unmarshal(item, &m); err != nil {
				return fmt.Errorf("unsupported system message: %s", string(item))
			}
			out = append(out, m.String())
		}
		*s = out
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SystemMessages{str}
		return nil
	}
	return fmt.Errorf("unsupported systemMessages payload: %s", string(data))
}

// ToRecord converts the response into the monitored transaction model.
func (r *TransactionResponse) ToRecord() *types.TransactionRecord {
	return &types.TransactionRecord{
		TransactionId:  r.Id,
		Status:         types.ParseCustodyStatus(r.Status),
		TxHash:         r.TxHash,
		SubStatus:      r.SubStatus,
		SystemMessages: r.SystemMessages,
	}
}
