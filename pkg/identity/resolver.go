// Package identity resolves and memoizes the chain address of a custody vault.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/clients/custody"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AddressLister is the slice of the custody client the resolver needs.
type AddressLister interface {
	ListAddresses(ctx context.Context, vaultAccountId, assetSymbol string) ([]custody.VaultAddress, error)
}

// ResolutionObserver is notified every time an address query is issued.
type ResolutionObserver interface {
	ObserveIdentityResolution()
}

// AddressResolver queries custody for the vault address once and caches it.
// Concurrent first callers share a single in-flight query.
type AddressResolver struct {
	vaultAccountId string
	assetSymbol    string
	lister         AddressLister
	observer       ResolutionObserver
	logger         *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache *types.AccountIdentity
}

func NewAddressResolver(vaultAccountId, assetSymbol string, lister AddressLister, observer ResolutionObserver, logger *zap.Logger) *AddressResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressResolver{
		vaultAccountId: vaultAccountId,
		assetSymbol:    assetSymbol,
		lister:         lister,
		observer:       observer,
		logger:         logger,
	}
}

// Resolve returns the cached identity, querying custody on first use. Failed
// queries are not cached, so a later call may succeed.
func (r *AddressResolver) Resolve(ctx context.Context) (*types.AccountIdentity, error) {
	if id := r.cached(); id != nil {
		return id, nil
	}

	v, err, shared := r.group.Do(r.vaultAccountId+"/"+r.assetSymbol, func() (any, error) {
		if id := r.cached(); id != nil {
			return id, nil
		}
		id, err := r.query(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cache == nil {
			r.cache = id
		}
		return r.cache, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Sugar().Debugw("Shared in-flight identity resolution", "vault_account_id", r.vaultAccountId)
	}
	id := v.(*types.AccountIdentity)
	return id, nil
}

func (r *AddressResolver) cached() *types.AccountIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache
}

func (r *AddressResolver) query(ctx context.Context) (*types.AccountIdentity, error) {
	if r.observer != nil {
		r.observer.ObserveIdentityResolution()
	}
	addresses, err := r.lister.ListAddresses(ctx, r.vaultAccountId, r.assetSymbol)
	if err != nil {
		return nil, &types.ResolutionError{
			VaultAccountId: r.vaultAccountId,
			AssetSymbol:    r.assetSymbol,
			Reason:         "address query failed",
			Err:            err,
		}
	}
	if len(addresses) == 0 {
		return nil, &types.ResolutionError{
			VaultAccountId: r.vaultAccountId,
			AssetSymbol:    r.assetSymbol,
			Reason:         "no addresses returned",
		}
	}

	first := strings.TrimSpace(addresses[0].Address)
	if first == "" {
		return nil, &types.ResolutionError{
			VaultAccountId: r.vaultAccountId,
			AssetSymbol:    r.assetSymbol,
			Reason:         "first address is empty",
		}
	}
	if !common.IsHexAddress(first) {
		return nil, &types.ResolutionError{
			VaultAccountId: r.vaultAccountId,
			AssetSymbol:    r.assetSymbol,
			Reason:         fmt.Sprintf("first address %q is not a hex address", first),
		}
	}

	id := &types.AccountIdentity{
		VaultAccountId: r.vaultAccountId,
		AssetSymbol:    r.assetSymbol,
		Address:        common.HexToAddress(first),
	}
	r.logger.Sugar().Infow("Resolved custody identity",
		"vault_account_id", id.VaultAccountId,
		"asset", id.AssetSymbol,
		"address", id.Address.Hex(),
	)
	return id, nil
}
