package signer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/annotator"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/identity"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/metrics"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/persistence"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/poller"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/signature"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

const pollLoopName = "signing_job"

// CustodySignerConfig holds the collaborators of a CustodySigner. Journal and
// Observer are optional.
type CustodySignerConfig struct {
	Signer   *config.SignerConfig
	Client   custody.ICustodyClient
	Journal  persistence.IJournalPersistence
	Observer Observer
	Logger   *zap.Logger
}

// CustodySigner implements ISigner on top of a custody vault account.
type CustodySigner struct {
	cfg      *config.SignerConfig
	client   custody.ICustodyClient
	journal  persistence.IJournalPersistence
	observer Observer
	resolver *identity.AddressResolver
	poller   *poller.Poller
	logger   *zap.Logger
}

var _ ISigner = (*CustodySigner)(nil)

func NewCustodySigner(cfg *CustodySignerConfig) (*CustodySigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer config is required")
	}
	if err := cfg.Signer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer config: %w", err)
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("custody client is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var resolutionObserver identity.ResolutionObserver
	var pollObserver poller.Observer
	if cfg.Observer != nil {
		resolutionObserver = cfg.Observer
		pollObserver = cfg.Observer
	}

	return &CustodySigner{
		cfg:      cfg.Signer,
		client:   cfg.Client,
		journal:  cfg.Journal,
		observer: cfg.Observer,
		resolver: identity.NewAddressResolver(cfg.Signer.VaultAccountId, cfg.Signer.AssetSymbol, cfg.Client, resolutionObserver, cfg.Logger),
		poller:   poller.NewPoller(pollLoopName, cfg.Signer.Poll, cfg.Logger, pollObserver),
		logger:   cfg.Logger,
	}, nil
}

func (cs *CustodySigner) GetIdentity(ctx context.Context) (*types.AccountIdentity, error) {
	return cs.resolver.Resolve(ctx)
}

func (cs *CustodySigner) SignStructuredData(ctx context.Context, domain apitypes.TypedDataDomain, typeSchema apitypes.Types, message apitypes.TypedDataMessage) (types.CanonicalSignature, error) {
	return cs.SignTypedData(ctx, &types.SigningRequest{
		Domain:  domain,
		Types:   typeSchema,
		Message: message,
	})
}

// SignTypedData submits exactly one signing job and polls it to a terminal status.
func (cs *CustodySigner) SignTypedData(ctx context.Context, req *types.SigningRequest) (types.CanonicalSignature, error) {
	td, err := BuildTypedData(req)
	if err != nil {
		return types.CanonicalSignature{}, err
	}

	resolved := &types.SigningRequest{
		Domain:      td.Domain,
		Types:       td.Types,
		PrimaryType: td.PrimaryType,
		Message:     td.Message,
	}
	label := annotator.Label(resolved)
	note := label
	if cs.cfg.Note != "" {
		note = cs.cfg.Note + ": " + label
	}

	start := time.Now()
	jobId, err := cs.client.CreateSigningJob(ctx, &custody.CreateSigningJobRequest{
		VaultAccountId: cs.cfg.VaultAccountId,
		AssetSymbol:    cs.cfg.AssetSymbol,
		TypedData:      td,
		Note:           note,
	})
	if err != nil {
		return types.CanonicalSignature{}, fmt.Errorf("failed to submit signing job: %w", err)
	}
	if cs.observer != nil {
		cs.observer.ObserveSigningSubmitted()
	}

	job := &types.RemoteSigningJob{
		JobId:          jobId,
		VaultAccountId: cs.cfg.VaultAccountId,
		AssetSymbol:    cs.cfg.AssetSymbol,
		Payload:        resolved,
		Note:           note,
		Label:          label,
		Status:         types.CustodyStatus_Submitted,
		CreatedAt:      start.UTC(),
		UpdatedAt:      start.UTC(),
	}
	cs.record(job)

	cs.logger.Sugar().Infow("Submitted signing job",
		"job_id", jobId,
		"vault_account_id", cs.cfg.VaultAccountId,
		"primary_type", td.PrimaryType,
		"label", label,
	)

	sig, err := cs.awaitSignature(ctx, job)

	if err != nil && job.LastError == "" {
		job.LastError = err.Error()
	}
	job.UpdatedAt = time.Now().UTC()
	cs.record(job)
	if cs.observer != nil {
		cs.observer.ObserveSigningOutcome(outcomeOf(err), time.Since(start))
	}
	if err != nil {
		cs.logger.Sugar().Warnw("Signing job failed",
			"job_id", jobId,
			"status", job.Status,
			"sub_status", job.SubStatus,
			"error", err,
		)
		return types.CanonicalSignature{}, err
	}

	cs.logger.Sugar().Infow("Signing job completed",
		"job_id", jobId,
		"signature_length", len(sig.Bytes()),
		"elapsed", time.Since(start).String(),
	)
	return sig, nil
}

func (cs *CustodySigner) awaitSignature(ctx context.Context, job *types.RemoteSigningJob) (types.CanonicalSignature, error) {
	var sig types.CanonicalSignature

	res, err := cs.poller.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		resp, err := cs.client.GetJob(ctx, job.JobId)
		if err != nil {
			job.LastError = err.Error()
			return false, cs.classifyQueryError(ctx, job, attempt, err)
		}
		if resp == nil {
			job.LastError = "empty response"
			return false, types.NewTransientError("get signing job", fmt.Errorf("empty response for signing job %s", job.JobId))
		}
		job.LastError = ""

		status := types.ParseCustodyStatus(resp.Status)
		if status != job.Status {
			cs.logger.Sugar().Debugw("Signing job status changed",
				"job_id", job.JobId,
				"from", job.Status,
				"to", status,
				"attempt", attempt,
			)
		}
		job.Status = status
		job.SubStatus = resp.SubStatus
		job.Messages = resp.SystemMessages

		switch {
		case status.IsSuccess():
			// Interpretation errors of a terminal response are not retried.
			if len(resp.SignedMessages) == 0 {
				formatErr := &types.SignatureFormatError{
					Expected: types.CanonicalSignatureLength,
					Reason:   "completed job carries no signed messages",
				}
				job.LastError = formatErr.Error()
				return false, poller.Permanent(formatErr)
			}
			normalized, err := signature.NormalizeJSON(resp.SignedMessages[0].Signature)
			if err != nil {
				job.LastError = err.Error()
				return false, poller.Permanent(err)
			}
			sig = normalized
			return true, nil
		case status.IsFailure():
			rejected := &types.SigningRejectedError{
				JobId:     job.JobId,
				Status:    status,
				SubStatus: resp.SubStatus,
				Messages:  resp.SystemMessages,
			}
			job.LastError = rejected.Error()
			return false, poller.Permanent(rejected)
		}
		return false, nil
	})

	pollCfg := cs.poller.Config()
	switch {
	case err == nil:
		return sig, nil
	case errors.Is(err, poller.ErrExhausted):
		return types.CanonicalSignature{}, &types.SigningTimeoutError{
			JobId:           job.JobId,
			Attempts:        pollCfg.MaxAttempts,
			Interval:        pollCfg.Interval,
			LastStatus:      job.Status,
			TransientErrors: res.TransientErrors,
			Err:             res.LastError,
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return types.CanonicalSignature{}, &types.SigningTimeoutError{
			JobId:           job.JobId,
			Attempts:        res.Attempts,
			Interval:        pollCfg.Interval,
			LastStatus:      job.Status,
			TransientErrors: res.TransientErrors,
			Aborted:         true,
			Err:             err,
		}
	}
	return types.CanonicalSignature{}, err
}

// classifyQueryError lets transient and context errors through to be retried
// and ends the loop on everything else.
func (cs *CustodySigner) classifyQueryError(ctx context.Context, job *types.RemoteSigningJob, attempt int, err error) error {
	if types.IsTransient(err) || ctx.Err() != nil {
		return err
	}
	return poller.Permanent(&types.CustodyQueryError{
		Operation:  "get signing job",
		Id:         job.JobId,
		Attempt:    attempt,
		LastStatus: job.Status,
		Err:        err,
	})
}

// record writes job to the journal. Journal failures never fail signing.
func (cs *CustodySigner) record(job *types.RemoteSigningJob) {
	if cs.journal == nil {
		return
	}
	if err := cs.journal.SaveSigningJob(job); err != nil {
		cs.logger.Sugar().Warnw("Failed to journal signing job", "job_id", job.JobId, "error", err)
	}
}

func outcomeOf(err error) string {
	var (
		rejected *types.SigningRejectedError
		timeout  *types.SigningTimeoutError
		format   *types.SignatureFormatError
		query    *types.CustodyQueryError
	)
	switch {
	case err == nil:
		return metrics.Outcome_Success
	case errors.As(err, &rejected):
		return metrics.Outcome_Rejected
	case errors.As(err, &timeout):
		if timeout.Aborted {
			return metrics.Outcome_Aborted
		}
		return metrics.Outcome_Timeout
	case errors.As(err, &format):
		return metrics.Outcome_InvalidFormat
	case errors.As(err, &query):
		return metrics.Outcome_QueryFailed
	}
	return metrics.Outcome_Error
}

// RecoverTypedDataSigner returns the address that produced sig over req.
func RecoverTypedDataSigner(req *types.SigningRequest, sig types.CanonicalSignature) (common.Address, error) {
	td, err := BuildTypedData(req)
	if err != nil {
		return common.Address{}, err
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash typed data: %w", err)
	}

	raw := sig.Bytes()
	raw[64] -= 27
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (cs *CustodySigner) VerifyTypedData(ctx context.Context, req *types.SigningRequest, sig types.CanonicalSignature) (bool, error) {
	id, err := cs.GetIdentity(ctx)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverTypedDataSigner(req, sig)
	if err != nil {
		return false, err
	}
	return recovered == id.Address, nil
}

func (cs *CustodySigner) SignTransaction(context.Context, *ethTypes.Transaction) (*ethTypes.Transaction, error) {
	return nil, &types.UnsupportedOperationError{Operation: "SignTransaction"}
}

func (cs *CustodySigner) SignMessage(context.Context, []byte) (types.CanonicalSignature, error) {
	return types.CanonicalSignature{}, &types.UnsupportedOperationError{Operation: "SignMessage"}
}

func (cs *CustodySigner) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, &types.UnsupportedOperationError{Operation: "EstimateGas"}
}

func (cs *CustodySigner) GetNonce(context.Context) (uint64, error) {
	return 0, &types.UnsupportedOperationError{Operation: "GetNonce"}
}

func (cs *CustodySigner) SendTransaction(context.Context, *ethTypes.Transaction) (common.Hash, error) {
	return common.Hash{}, &types.UnsupportedOperationError{Operation: "SendTransaction"}
}

func (cs *CustodySigner) ResolveName(context.Context, string) (common.Address, error) {
	return common.Address{}, &types.UnsupportedOperationError{Operation: "ResolveName"}
}
