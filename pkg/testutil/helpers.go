package testutil

import (
	"crypto/ecdsa"
	"testing"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

// GenerateTestKey returns a fresh secp256k1 key and its address.
func GenerateTestKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// SignTypedDataComponents signs td with key the way custody reports it:
// separate r and s hex strings and a 0/1 recovery id.
func SignTypedDataComponents(t *testing.T, td apitypes.TypedData, key *ecdsa.PrivateKey) types.RawSignature {
	t.Helper()
	hash, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)

	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)

	v := "0"
	if sig[64] == 1 {
		v = "1"
	}
	return types.RawSignature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: v,
	}
}
