package custody

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func generateKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	return privateKey, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *rsa.PrivateKey) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	privateKey, pemBytes := generateKey(t)
	cfg := config.DefaultCustodyConfig()
	cfg.BaseUrl = server.URL
	cfg.ApiKey = "test-api-key"
	cfg.SecretKeyPem = pemBytes
	cfg.RateLimit = 0

	client, err := NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client, privateKey
}

func verifyToken(t *testing.T, r *http.Request, privateKey *rsa.PrivateKey, body []byte) map[string]any {
	t.Helper()
	auth := r.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "))

	pub, err := jwk.Import(&privateKey.PublicKey)
	require.NoError(t, err)
	payload, err := jws.Verify([]byte(strings.TrimPrefix(auth, "Bearer ")), jws.WithKey(jwa.RS256(), pub))
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), claims["bodyHash"])
	assert.Equal(t, r.URL.RequestURI(), claims["uri"])
	assert.Equal(t, "test-api-key", claims["sub"])
	assert.NotEmpty(t, claims["nonce"])
	assert.Equal(t, "test-api-key", r.Header.Get("X-API-Key"))
	return claims
}

func Test_NewClient_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewClient(nil, logger)
	require.Error(t, err)

	_, pemBytes := generateKey(t)
	cfg := config.DefaultCustodyConfig()
	cfg.ApiKey = "k"
	cfg.SecretKeyPem = pemBytes
	_, err = NewClient(cfg, nil)
	require.Error(t, err)

	cfg.SecretKeyPem = []byte("not a key")
	_, err = NewClient(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key")

	cfg.ApiKey = ""
	_, err = NewClient(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKey")
}

func Test_Client_ListAddresses_Paginates(t *testing.T) {
	var calls int32
	var privateKey *rsa.PrivateKey
	client, privateKey := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		verifyToken(t, r, privateKey, nil)
		assert.Equal(t, "/v1/vault/accounts/7/ETH_TEST5/addresses_paginated", r.URL.Path)

		switch r.URL.Query().Get("after") {
		case "":
			_, _ = io.WriteString(w, `{"addresses":[{"assetId":"ETH_TEST5","address":"0x00000000000000000000000000000000000000aa"}],"paging":{"after":"cursor-1"}}`)
		case "cursor-1":
			_, _ = io.WriteString(w, `{"addresses":[{"assetId":"ETH_TEST5","address":"0x00000000000000000000000000000000000000bb"}],"paging":{}}`)
		default:
			t.Errorf("unexpected cursor %s", r.URL.Query().Get("after"))
		}
	})

	addresses, err := client.ListAddresses(context.Background(), "7", "ETH_TEST5")
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", addresses[0].Address)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", addresses[1].Address)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func Test_Client_CreateSigningJob(t *testing.T) {
	var privateKey *rsa.PrivateKey
	client, privateKey := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		verifyToken(t, r, privateKey, body)

		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "TYPED_MESSAGE", req["operation"])
		assert.Equal(t, "ETH", req["assetId"])
		assert.Equal(t, "order signing", req["note"])
		assert.Equal(t, "ext-1", req["externalTxId"])
		assert.Equal(t, map[string]any{"type": "VAULT_ACCOUNT", "id": "0"}, req["source"])

		messages := req["extraParameters"].(map[string]any)["rawMessageData"].(map[string]any)["messages"].([]any)
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]any)
		assert.Equal(t, "EIP712", msg["type"])
		content := msg["content"].(map[string]any)
		assert.Equal(t, "Order", content["primaryType"])

		_, _ = io.WriteString(w, `{"id":"job-123","status":"SUBMITTED"}`)
	})

	jobId, err := client.CreateSigningJob(context.Background(), &CreateSigningJobRequest{
		VaultAccountId: "0",
		AssetSymbol:    "ETH",
		Note:           "order signing",
		ExternalId:     "ext-1",
		TypedData: apitypes.TypedData{
			Types: apitypes.Types{
				"EIP712Domain": {{Name: "name", Type: "string"}, {Name: "chainId", Type: "uint256"}},
				"Order":        {{Name: "amount", Type: "uint256"}},
			},
			PrimaryType: "Order",
			Domain:      apitypes.TypedDataDomain{Name: "Exchange", ChainId: math.NewHexOrDecimal256(1)},
			Message:     apitypes.TypedDataMessage{"amount": "10"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-123", jobId)
}

func Test_Client_CreateSigningJob_EmptyId(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"SUBMITTED"}`)
	})
	_, err := client.CreateSigningJob(context.Background(), &CreateSigningJobRequest{VaultAccountId: "0", AssetSymbol: "ETH"})
	require.Error(t, err)
}

func Test_Client_GetJob_DecodesSignatureShapes(t *testing.T) {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32)
	client, _ := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/transactions/job-1", req.URL.Path)
		_, _ = io.WriteString(w, `{
			"id":"job-1",
			"status":"COMPLETED",
			"signedMessages":[{"algorithm":"MPC_ECDSA_SECP256K1","signature":{"fullSig":"`+r+s+`","r":"`+r+`","s":"`+s+`","v":1}}],
			"systemMessages":{"type":"WARN","message":"slow approval"}
		}`)
	})

	job, err := client.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", job.Status)
	require.Len(t, job.SignedMessages, 1)
	var sig types.RawSignature
	require.NoError(t, json.Unmarshal(job.SignedMessages[0].Signature, &sig))
	assert.Equal(t, r+s, sig.FullSig)
	assert.Equal(t, "1", sig.V)
	assert.Equal(t, SystemMessages{"WARN: slow approval"}, job.SystemMessages)
}

func Test_Client_GetJob_KeepsUnusualSignatureShapes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"id":"job-1","status":"COMPLETED","signedMessages":[{"signature":{"r":"11","s":"22","v":true}},{"signature":[1,2]}]}`)
	})

	job, err := client.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, job.SignedMessages, 2)
	assert.JSONEq(t, `{"r":"11","s":"22","v":true}`, string(job.SignedMessages[0].Signature))
	assert.JSONEq(t, `[1,2]`, string(job.SignedMessages[1].Signature))
}

func Test_Client_GetTransaction(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"tx-1","status":"FAILED","subStatus":"INSUFFICIENT_FUNDS","txHash":"0xabc","systemMessages":["gas too low",{"type":"BLOCK","message":"policy"}]}`)
	})

	resp, err := client.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)

	record := resp.ToRecord()
	assert.Equal(t, types.CustodyStatus_Failed, record.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", record.SubStatus)
	assert.Equal(t, "0xabc", record.TxHash)
	assert.Equal(t, []string{"gas too low", "BLOCK: policy"}, record.SystemMessages)
}

func Test_Client_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"throttled", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"code":1427,"message":"nope"}`)
			})
			_, err := client.GetTransaction(context.Background(), "tx-1")
			require.Error(t, err)
			assert.Equal(t, tt.transient, types.IsTransient(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func Test_Client_NetworkErrorIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	client.baseUrl = "http://127.0.0.1:1"

	_, err := client.GetJob(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
}

func Test_Client_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetJob(ctx, "job-1")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsTransient(err))
}

func Test_SystemMessages_Unmarshal(t *testing.T) {
	tests := []struct {
		in       string
		expected SystemMessages
	}{
		{`null`, nil},
		{`"plain"`, SystemMessages{"plain"}},
		{`{"type":"","message":"only message"}`, SystemMessages{"only message"}},
		{`[]`, SystemMessages{}},
		{`["a",{"type":"T","message":"b"}]`, SystemMessages{"a", "T: b"}},
	}
	for _, tt := range tests {
		var m SystemMessages
		require.NoError(t, json.Unmarshal([]byte(tt.in), &m), tt.in)
		assert.Equal(t, tt.expected, m, tt.in)
	}

	var m SystemMessages
	require.Error(t, json.Unmarshal([]byte(`42`), &m))
}
