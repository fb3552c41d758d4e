package custody

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	tokenLifetime    = 30 * time.Second
	maxErrorBodySize = 4096
	addressPageSize  = 200
)

// Client talks to the custody REST API. It holds no per-request state and is safe
// for concurrent use.
type Client struct {
	baseUrl    string
	apiKey     string
	signingKey jwk.Key
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient validates cfg and parses its RSA signing key.
func NewClient(cfg *config.CustodyConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid custody config")
	}

	key, err := jwk.ParseKey(cfg.SecretKeyPem, jwk.WithPEM(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse custody API secret key")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	return &Client{
		baseUrl:    strings.TrimRight(cfg.BaseUrl, "/"),
		apiKey:     cfg.ApiKey,
		signingKey: key,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    limiter,
		logger:     logger,
	}, nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) ListAddresses(ctx context.Context, vaultAccountId, assetSymbol string) ([]VaultAddress, error) {
	path := fmt.Sprintf("/v1/vault/accounts/%s/%s/addresses_paginated",
		url.PathEscape(vaultAccountId), url.PathEscape(assetSymbol))

	var addresses []VaultAddress
	after := ""
	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", addressPageSize))
		if after != "" {
			query.Set("after", after)
		}

		var page listAddressesResponse
		if err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &page); err != nil {
			return nil, errors.Wrapf(err, "failed to list addresses for vault %s asset %s", vaultAccountId, assetSymbol)
		}
		addresses = append(addresses, page.Addresses...)
		if page.Paging.After == "" || page.Paging.After == after {
			break
		}
		after = page.Paging.After
	}
	return addresses, nil
}

func (c *Client) CreateSigningJob(ctx context.Context, req *CreateSigningJobRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("signing job request cannot be nil")
	}
	externalId := req.ExternalId
	if externalId == "" {
		externalId = uuid.New().String()
	}

	body := &createTransactionRequest{
		Operation:    operationTypedMessage,
		AssetId:      req.AssetSymbol,
		Source:       transferPeer{Type: peerTypeVaultAccount, Id: req.VaultAccountId},
		Note:         req.Note,
		ExternalTxId: externalId,
		ExtraParameters: extraParameters{
			RawMessageData: rawMessageData{
				Messages: []rawMessage{{Content: req.TypedData, Type: messageTypeEIP712}},
			},
		},
	}

	var resp createTransactionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", body, &resp); err != nil {
		return "", errors.Wrap(err, "failed to create signing job")
	}
	if resp.Id == "" {
		return "", fmt.Errorf("custody returned an empty job id")
	}

	c.logger.Sugar().Debugw("Created custody signing job",
		"job_id", resp.Id,
		"status", resp.Status,
		"external_id", externalId,
	)
	return resp.Id, nil
}

func (c *Client) GetJob(ctx context.Context, jobId string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(jobId), nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to get signing job %s", jobId)
	}
	return &resp, nil
}

func (c *Client) GetTransaction(ctx context.Context, transactionId string) (*TransactionResponse, error) {
	var resp TransactionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(transactionId), nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to get transaction %s", transactionId)
	}
	return &resp, nil
}

// APIError is a non-2xx response from the custody API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("custody API returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("custody API returned %d: %s", e.StatusCode, e.Body)
}

// do performs one authenticated request. Network failures, 429 and 5xx responses
// come back as *types.TransientError.
func (c *Client) do(ctx context.Context, method, path string, reqBody any, out any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait aborted")
	}

	token, err := c.signRequest(path, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.NewTransientError(method+" "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		_ = json.Unmarshal(body, apiErr)
		apiErr.StatusCode = resp.StatusCode

		c.logger.Sugar().Debugw("Custody API error response",
			"method", method,
			"path", path,
			"status_code", resp.StatusCode,
		)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return types.NewTransientError(method+" "+path, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return types.NewTransientError(method+" "+path, err)
		}
		return errors.Wrap(err, "failed to decode custody response")
	}
	return nil
}

// signRequest builds the per-request bearer token. The body hash binds the token
// to this exact payload and the uri claim to this exact path.
func (c *Client) signRequest(path string, body []byte) (string, error) {
	sum := sha256.Sum256(body)
	now := time.Now()

	token := jwt.New()
	claims := map[string]any{
		"uri":             path,
		"nonce":           uuid.New().String(),
		"bodyHash":        hex.EncodeToString(sum[:]),
		jwt.SubjectKey:    c.apiKey,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(tokenLifetime),
	}
	for k, v := range claims {
		if err := token.Set(k, v); err != nil {
			return "", errors.Wrapf(err, "failed to set claim %s", k)
		}
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), c.signingKey))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign request token")
	}
	return string(signed), nil
}
