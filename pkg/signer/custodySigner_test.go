package signer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/metrics"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/testutil"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/math"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/prometheus/client_golang/prometheus"
	prometheusTestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	rHex = strings.Repeat("11", 32)
	sHex = strings.Repeat("22", 32)
)

func completedJob(sig types.RawSignature) testutil.JobStep {
	payload, _ := json.Marshal(sig)
	return testutil.JobStep{Response: &custody.JobResponse{
		Id:             "job-1",
		Status:         "COMPLETED",
		SignedMessages: []custody.SignedMessage{{Algorithm: "MPC_ECDSA_SECP256K1", Signature: payload}},
	}}
}

func testSignerConfig(attempts int) *config.SignerConfig {
	return &config.SignerConfig{
		VaultAccountId: "0",
		AssetSymbol:    "ETH",
		Poll:           config.PollConfig{Interval: time.Millisecond, MaxAttempts: attempts},
	}
}

func newTestSigner(t *testing.T, client *testutil.MockCustodyClient, cfg *config.SignerConfig, opts ...func(*CustodySignerConfig)) *CustodySigner {
	t.Helper()
	scfg := &CustodySignerConfig{
		Signer: cfg,
		Client: client,
		Logger: zaptest.NewLogger(t),
	}
	for _, o := range opts {
		o(scfg)
	}
	s, err := NewCustodySigner(scfg)
	require.NoError(t, err)
	return s
}

func Test_NewCustodySigner_Validation(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	l := zaptest.NewLogger(t)

	_, err := NewCustodySigner(nil)
	require.Error(t, err)

	_, err = NewCustodySigner(&CustodySignerConfig{Client: client, Logger: l})
	require.Error(t, err)

	_, err = NewCustodySigner(&CustodySignerConfig{Signer: &config.SignerConfig{}, Client: client, Logger: l})
	require.Error(t, err)

	_, err = NewCustodySigner(&CustodySignerConfig{Signer: testSignerConfig(1), Logger: l})
	require.Error(t, err)

	_, err = NewCustodySigner(&CustodySignerConfig{Signer: testSignerConfig(1), Client: client})
	require.Error(t, err)
}

func Test_SignTypedData_CompletesAfterPending(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(
		testutil.Job("PENDING_SIGNATURE"),
		testutil.Job("PENDING_SIGNATURE"),
		testutil.Job("PENDING_SIGNATURE"),
		completedJob(types.RawSignature{R: "0x" + rHex, S: "0x" + sHex, V: "1"}),
	)
	s := newTestSigner(t, client, testSignerConfig(10))

	sig, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)

	assert.Equal(t, "0x"+rHex+sHex+"1c", sig.Hex())
	assert.Len(t, sig.Bytes(), 65)
	assert.Equal(t, 4, client.GetJobCalls())
	assert.Len(t, client.Created(), 1)
}

func Test_SignTypedData_SubmitsResolvedEnvelope(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(completedJob(types.RawSignature{R: rHex, S: sHex, V: "0"}))
	cfg := testSignerConfig(3)
	cfg.Note = "market-maker"
	s := newTestSigner(t, client, cfg)

	req := &types.SigningRequest{
		Domain: apitypes.TypedDataDomain{Name: "Exchange", ChainId: math.NewHexOrDecimal256(137)},
		Types: apitypes.Types{
			"Order": {{Name: "maker", Type: "address"}, {Name: "amount", Type: "uint256"}},
		},
		Message: apitypes.TypedDataMessage{
			"maker":  "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			"amount": "1000",
		},
	}
	_, err := s.SignTypedData(context.Background(), req)
	require.NoError(t, err)

	created := client.Created()
	require.Len(t, created, 1)
	sub := created[0]
	assert.Equal(t, "0", sub.VaultAccountId)
	assert.Equal(t, "ETH", sub.AssetSymbol)
	assert.Equal(t, "Order", sub.TypedData.PrimaryType)
	assert.Equal(t, []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	}, sub.TypedData.Types["EIP712Domain"])
	assert.True(t, strings.HasPrefix(sub.Note, "market-maker: "), sub.Note)
}

func Test_SignTypedData_Rejected(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(
		testutil.Job("PENDING_AUTHORIZATION"),
		testutil.JobStep{Response: &custody.JobResponse{
			Id:             "job-1",
			Status:         "BLOCKED",
			SubStatus:      "POLICY_DENIED",
			SystemMessages: custody.SystemMessages{"Blocked by TAP rule 3"},
		}},
	)
	s := newTestSigner(t, client, testSignerConfig(10))

	_, err := s.SignTypedData(context.Background(), mailRequest())

	var rejected *types.SigningRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, types.CustodyStatus_Blocked, rejected.Status)
	assert.Equal(t, "POLICY_DENIED", rejected.SubStatus)
	assert.Contains(t, err.Error(), "POLICY_DENIED")
	assert.Contains(t, err.Error(), "Blocked by TAP rule 3")
	assert.Equal(t, 2, client.GetJobCalls())
}

func Test_SignTypedData_TimesOutWithinBound(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(testutil.Job("PENDING_AUTHORIZATION"))
	cfg := &config.SignerConfig{
		VaultAccountId: "0",
		AssetSymbol:    "ETH",
		Poll:           config.PollConfig{Interval: 5 * time.Millisecond, MaxAttempts: 4},
	}
	s := newTestSigner(t, client, cfg)

	start := time.Now()
	_, err := s.SignTypedData(context.Background(), mailRequest())
	elapsed := time.Since(start)

	var timeout *types.SigningTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.False(t, timeout.Aborted)
	assert.Equal(t, 4, timeout.Attempts)
	assert.Equal(t, 20*time.Millisecond, timeout.Bound())
	assert.Equal(t, types.CustodyStatus_PendingAuthorization, timeout.LastStatus)
	assert.Equal(t, 4, client.GetJobCalls())
	assert.GreaterOrEqual(t, elapsed, cfg.Poll.Bound())
	assert.Less(t, elapsed, cfg.Poll.Bound()+time.Second)
}

func Test_SignTypedData_ToleratesTransientErrors(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	flaky := types.NewTransientError("get job", errors.New("502 bad gateway"))
	client.ScriptJob(
		testutil.JobStep{Err: flaky},
		testutil.Job("PENDING_SIGNATURE"),
		testutil.JobStep{Err: flaky},
		completedJob(types.RawSignature{R: rHex, S: sHex, V: "27"}),
	)
	s := newTestSigner(t, client, testSignerConfig(10))

	sig, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)
	assert.Equal(t, byte(27), sig.V())
}

func Test_SignTypedData_TransientErrorsExhaustBudget(t *testing.T) {
	refused := errors.New("connection refused")
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(testutil.JobStep{Err: types.NewTransientError("get job", refused)})
	s := newTestSigner(t, client, testSignerConfig(3))

	_, err := s.SignTypedData(context.Background(), mailRequest())

	var timeout *types.SigningTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.TransientErrors)
	assert.Equal(t, 3, client.GetJobCalls())
	require.ErrorIs(t, err, refused)
	assert.True(t, types.IsTransient(errors.Unwrap(err)))
}

func Test_SignTypedData_UnknownJobStopsPolling(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	notFound := &custody.APIError{StatusCode: http.StatusNotFound, Message: "transaction not found"}
	client.ScriptJob(testutil.JobStep{Err: notFound})
	journal := memory.NewMemoryPersistence()
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	s := newTestSigner(t, client, testSignerConfig(10), func(c *CustodySignerConfig) {
		c.Journal = journal
		c.Observer = m
	})

	_, err := s.SignTypedData(context.Background(), mailRequest())

	var query *types.CustodyQueryError
	require.ErrorAs(t, err, &query)
	assert.Equal(t, "job-1", query.Id)
	assert.Equal(t, 1, query.Attempt)
	assert.Equal(t, types.CustodyStatus_Submitted, query.LastStatus)

	var apiErr *custody.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	var timeout *types.SigningTimeoutError
	assert.False(t, errors.As(err, &timeout))
	assert.Equal(t, 1, client.GetJobCalls())
	assert.Equal(t, float64(0), prometheusTestutil.ToFloat64(m.TransientErrors.WithLabelValues(pollLoopName)))
	assert.Equal(t, float64(1), prometheusTestutil.ToFloat64(m.SigningJobOutcomes.WithLabelValues(metrics.Outcome_QueryFailed)))

	job, err := journal.LoadSigningJob("job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, types.CustodyStatus_Submitted, job.Status)
	assert.Contains(t, job.LastError, "transaction not found")
}

func Test_SignTypedData_ContextCancelled(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(testutil.Job("PENDING_SIGNATURE"))
	cfg := &config.SignerConfig{
		VaultAccountId: "0",
		AssetSymbol:    "ETH",
		Poll:           config.PollConfig{Interval: time.Hour, MaxAttempts: 10},
	}
	s := newTestSigner(t, client, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.SignTypedData(ctx, mailRequest())

	var timeout *types.SigningTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.True(t, timeout.Aborted)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func Test_SignTypedData_CompletedWithoutSignature(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(testutil.Job("COMPLETED"))
	s := newTestSigner(t, client, testSignerConfig(10))

	_, err := s.SignTypedData(context.Background(), mailRequest())

	var formatErr *types.SignatureFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1, client.GetJobCalls())
}

func Test_SignTypedData_MalformedSignature(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(completedJob(types.RawSignature{FullSig: rHex, V: "1"}))
	s := newTestSigner(t, client, testSignerConfig(10))

	_, err := s.SignTypedData(context.Background(), mailRequest())

	var formatErr *types.SignatureFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1, client.GetJobCalls())
}

func Test_SignTypedData_InvalidRequestNeverSubmits(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	s := newTestSigner(t, client, testSignerConfig(10))

	_, err := s.SignTypedData(context.Background(), &types.SigningRequest{
		Domain:  apitypes.TypedDataDomain{Name: "X"},
		Types:   apitypes.Types{"EIP712Domain": {{Name: "name", Type: "string"}}},
		Message: apitypes.TypedDataMessage{"a": "b"},
	})
	require.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Empty(t, client.Created())
}

func Test_SignTypedData_SubmitFailure(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.CreateErr = errors.New("unauthorized")
	s := newTestSigner(t, client, testSignerConfig(10))

	_, err := s.SignTypedData(context.Background(), mailRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Equal(t, 0, client.GetJobCalls())
}

func Test_SignTypedData_JournalsJob(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.JobId = "job-42"
	client.ScriptJob(
		testutil.Job("PENDING_SIGNATURE"),
		completedJob(types.RawSignature{R: rHex, S: sHex, V: "1"}),
	)
	journal := memory.NewMemoryPersistence()
	s := newTestSigner(t, client, testSignerConfig(10), func(c *CustodySignerConfig) {
		c.Journal = journal
	})

	_, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)

	job, err := journal.LoadSigningJob("job-42")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, types.CustodyStatus_Completed, job.Status)
	assert.Equal(t, "Mail for Ether Mail", job.Label)
	assert.Equal(t, "Mail", job.Payload.PrimaryType)
	assert.Empty(t, job.LastError)
	assert.False(t, job.UpdatedAt.Before(job.CreatedAt))
}

func Test_SignTypedData_JournalsFailureReason(t *testing.T) {
	tests := []struct {
		name     string
		steps    []testutil.JobStep
		status   types.CustodyStatus
		contains string
	}{
		{
			name:     "malformed signature",
			steps:    []testutil.JobStep{completedJob(types.RawSignature{FullSig: rHex, V: "1"})},
			status:   types.CustodyStatus_Completed,
			contains: "invalid signature format",
		},
		{
			name:     "rejected",
			steps:    []testutil.JobStep{testutil.Job("REJECTED")},
			status:   types.CustodyStatus_Rejected,
			contains: "REJECTED",
		},
		{
			name:     "retried errors",
			steps:    []testutil.JobStep{{Err: types.NewTransientError("get job", errors.New("502 bad gateway"))}},
			status:   types.CustodyStatus_Submitted,
			contains: "502 bad gateway",
		},
		{
			name:     "still pending",
			steps:    []testutil.JobStep{testutil.Job("PENDING_SIGNATURE")},
			status:   types.CustodyStatus_PendingSignature,
			contains: "did not complete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutil.NewMockCustodyClient()
			client.ScriptJob(tt.steps...)
			journal := memory.NewMemoryPersistence()
			s := newTestSigner(t, client, testSignerConfig(2), func(c *CustodySignerConfig) {
				c.Journal = journal
			})

			_, err := s.SignTypedData(context.Background(), mailRequest())
			require.Error(t, err)

			job, err := journal.LoadSigningJob("job-1")
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, tt.status, job.Status)
			assert.Contains(t, job.LastError, tt.contains)
		})
	}
}

func Test_SignTypedData_JournalFailureDoesNotFailSigning(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(completedJob(types.RawSignature{R: rHex, S: sHex, V: "1"}))
	journal := memory.NewMemoryPersistence()
	require.NoError(t, journal.Close())
	s := newTestSigner(t, client, testSignerConfig(10), func(c *CustodySignerConfig) {
		c.Journal = journal
	})

	_, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)
}

func Test_SignTypedData_RecordsMetrics(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(
		testutil.JobStep{Err: types.NewTransientError("get job", errors.New("reset"))},
		completedJob(types.RawSignature{R: rHex, S: sHex, V: "1"}),
	)
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	s := newTestSigner(t, client, testSignerConfig(10), func(c *CustodySignerConfig) {
		c.Observer = m
	})

	_, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)

	assert.Equal(t, float64(1), prometheusTestutil.ToFloat64(m.SigningJobsSubmitted))
	assert.Equal(t, float64(2), prometheusTestutil.ToFloat64(m.PollAttempts.WithLabelValues(pollLoopName)))
	assert.Equal(t, float64(1), prometheusTestutil.ToFloat64(m.TransientErrors.WithLabelValues(pollLoopName)))
	assert.Equal(t, float64(1), prometheusTestutil.ToFloat64(m.SigningJobOutcomes.WithLabelValues(metrics.Outcome_Success)))
}

func Test_SignStructuredData_DerivesPrimaryType(t *testing.T) {
	client := testutil.NewMockCustodyClient()
	client.ScriptJob(completedJob(types.RawSignature{R: rHex, S: sHex, V: "1"}))
	s := newTestSigner(t, client, testSignerConfig(10))

	req := mailRequest()
	_, err := s.SignStructuredData(context.Background(), req.Domain, req.Types, req.Message)
	require.NoError(t, err)
	assert.Equal(t, "Mail", client.Created()[0].TypedData.PrimaryType)
}

func Test_SignStructuredData_ConcurrentCalls(t *testing.T) {
	const callers = 16
	_, addr := testutil.GenerateTestKey(t)

	client := testutil.NewMockCustodyClient()
	client.UniqueJobIds = true
	client.Addresses = []custody.VaultAddress{{AssetId: "ETH", Address: addr.Hex()}}
	client.ScriptJob(completedJob(types.RawSignature{R: rHex, S: sHex, V: "1"}))
	journal := memory.NewMemoryPersistence()
	s := newTestSigner(t, client, testSignerConfig(10), func(c *CustodySignerConfig) {
		c.Journal = journal
	})

	req := mailRequest()
	var wg sync.WaitGroup
	errs := make(chan error, 2*callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.GetIdentity(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if id.Address != addr {
				errs <- fmt.Errorf("unexpected address %s", id.Address.Hex())
			}
			sig, err := s.SignStructuredData(context.Background(), req.Domain, req.Types, req.Message)
			if err != nil {
				errs <- err
				return
			}
			if sig.Hex() != "0x"+rHex+sHex+"1c" {
				errs <- fmt.Errorf("unexpected signature %s", sig.Hex())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.ListCalls())
	assert.Len(t, client.Created(), callers)

	jobs, err := journal.ListSigningJobs()
	require.NoError(t, err)
	require.Len(t, jobs, callers)
	seen := make(map[string]bool, callers)
	for _, job := range jobs {
		assert.Equal(t, types.CustodyStatus_Completed, job.Status)
		seen[job.JobId] = true
	}
	assert.Len(t, seen, callers)
}

func Test_SignTypedData_AgainstCustodyApi(t *testing.T) {
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transactions":
			_, _ = io.WriteString(w, `{"id":"job-77","status":"SUBMITTED"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transactions/job-77":
			atomic.AddInt32(&gets, 1)
			_, _ = io.WriteString(w, `{
				"id":"job-77",
				"status":"COMPLETED",
				"signedMessages":[{"algorithm":"MPC_ECDSA_SECP256K1","signature":{"r":"`+rHex+`","s":"`+sHex+`","v":true}}]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)

	custodyCfg := config.DefaultCustodyConfig()
	custodyCfg.BaseUrl = server.URL
	custodyCfg.ApiKey = "test-api-key"
	custodyCfg.SecretKeyPem = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	custodyCfg.RateLimit = 0

	l := zaptest.NewLogger(t)
	client, err := custody.NewClient(custodyCfg, l)
	require.NoError(t, err)
	s, err := NewCustodySigner(&CustodySignerConfig{
		Signer: testSignerConfig(5),
		Client: client,
		Logger: l,
	})
	require.NoError(t, err)

	sig, err := s.SignTypedData(context.Background(), mailRequest())
	require.NoError(t, err)
	assert.Equal(t, "0x"+rHex+sHex+"1b", sig.Hex())
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))
}

func Test_SignAndVerify_WithRealKey(t *testing.T) {
	key, addr := testutil.GenerateTestKey(t)
	_, otherAddr := testutil.GenerateTestKey(t)

	client := testutil.NewMockCustodyClient()
	client.Addresses = []custody.VaultAddress{{AssetId: "ETH", Address: addr.Hex()}}
	client.OnCreate = func(req *custody.CreateSigningJobRequest) {
		client.ScriptJob(completedJob(testutil.SignTypedDataComponents(t, req.TypedData, key)))
	}
	s := newTestSigner(t, client, testSignerConfig(10))

	req := mailRequest()
	sig, err := s.SignTypedData(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig.V())

	recovered, err := RecoverTypedDataSigner(req, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	ok, err := s.VerifyTypedData(context.Background(), req, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	id, err := s.GetIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addr, id.Address)

	tampered := mailRequest()
	tampered.Message["contents"] = "Goodbye, Bob!"
	ok, err = s.VerifyTypedData(context.Background(), tampered, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	other := testutil.NewMockCustodyClient()
	other.Addresses = []custody.VaultAddress{{AssetId: "ETH", Address: otherAddr.Hex()}}
	ok, err = newTestSigner(t, other, testSignerConfig(1)).VerifyTypedData(context.Background(), req, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_UnsupportedOperations(t *testing.T) {
	s := newTestSigner(t, testutil.NewMockCustodyClient(), testSignerConfig(1))
	ctx := context.Background()
	tx := ethTypes.NewTx(&ethTypes.LegacyTx{})

	_, errSignTx := s.SignTransaction(ctx, tx)
	_, errSignMsg := s.SignMessage(ctx, []byte("hello"))
	_, errGas := s.EstimateGas(ctx, ethereum.CallMsg{})
	_, errNonce := s.GetNonce(ctx)
	_, errSend := s.SendTransaction(ctx, tx)
	_, errResolve := s.ResolveName(ctx, "vitalik.eth")

	for name, err := range map[string]error{
		"SignTransaction": errSignTx,
		"SignMessage":     errSignMsg,
		"EstimateGas":     errGas,
		"GetNonce":        errNonce,
		"SendTransaction": errSend,
		"ResolveName":     errResolve,
	} {
		var unsupported *types.UnsupportedOperationError
		require.ErrorAs(t, err, &unsupported, name)
		assert.Equal(t, name, unsupported.Operation)
	}
}
