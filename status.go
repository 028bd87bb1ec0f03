package safe4337

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
	"golang.org/x/sync/errgroup"
)

// DeploymentThreshold is the balance considered enough to deploy a Safe and a few test contracts.
var DeploymentThreshold = big.NewInt(1e16) // 0.01 ETH

// Sentinel used by Safe module lists.
var sentinelModules = common.HexToAddress("0x0000000000000000000000000000000000000001")

type NetworkInfo struct {
	ChainID       *big.Int
	ExpectedChain uint64
	BlockNumber   uint64
}

// Matches reports whether the node serves the chain of the network profile.
func (n *NetworkInfo) Matches() bool {
	return n.ExpectedChain == 0 || n.ChainID.Uint64() == n.ExpectedChain
}

// NetworkCheck reads the chain id and head block of the node.
func (c *Client) NetworkCheck(ctx context.Context) (*NetworkInfo, error) {
	block, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting block number: %w", err)
	}
	return &NetworkInfo{ChainID: c.chainId, ExpectedChain: c.network.ChainID, BlockNumber: block}, nil
}

// ContractCheck is the deployment state of one infrastructure contract.
type ContractCheck struct {
	Name     string
	Address  common.Address
	Deployed bool
	CodeSize int
}

// InfrastructureCheck looks for code at every contract of the network profile.
// Contracts are probed concurrently; results keep the profile order.
func (c *Client) InfrastructureCheck(ctx context.Context) ([]ContractCheck, error) {
	checks := []ContractCheck{
		{Name: "EntryPoint", Address: c.network.EntryPoint},
		{Name: "SafeProxyFactory", Address: c.network.SafeFactory},
		{Name: "SafeSingleton", Address: c.network.SafeSingleton},
		{Name: "Safe4337Module", Address: c.network.Safe4337Module},
		{Name: "SafeModuleSetup", Address: c.network.SafeModuleSetup},
		{Name: "MultiSend", Address: c.network.MultiSend},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range checks {
		g.Go(func() error {
			code, err := c.eth.CodeAt(gctx, checks[i].Address, nil)
			if err != nil {
				return fmt.Errorf("error getting code of %s: %w", checks[i].Name, err)
			}
			checks[i].CodeSize = len(code)
			checks[i].Deployed = len(code) > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// SafeState is what check-status reports about a Safe.
type SafeState struct {
	Address         common.Address
	Deployed        bool
	Version         string
	Owners          []common.Address
	Threshold       *big.Int
	Modules         []common.Address
	ModuleEnabled   bool
	Nonce           *big.Int // Safe transaction nonce
	EntryPointNonce *big.Int
	Balance         *big.Int
}

// SafeStatus inspects a Safe. An address without code is reported as not deployed.
func (c *Client) SafeStatus(ctx context.Context, addr common.Address) (*SafeState, error) {
	state := &SafeState{Address: addr}
	deployed, err := IsAccountDeployed(ctx, c.eth, addr)
	if err != nil {
		return nil, fmt.Errorf("error checking deployment: %w", err)
	}
	state.Deployed = deployed
	if state.Balance, err = c.GetAccountBalance(ctx, addr); err != nil {
		return nil, err
	}
	if !deployed {
		return state, nil
	}

	caller, err := safe.NewSafeCaller(addr, c.eth)
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	opts := &bind.CallOpts{Context: gctx}
	g.Go(func() (err error) {
		state.Owners, err = caller.GetOwners(opts)
		return wrapCall("getOwners", err)
	})
	g.Go(func() (err error) {
		state.Threshold, err = caller.GetThreshold(opts)
		return wrapCall("getThreshold", err)
	})
	g.Go(func() error {
		page, err := caller.GetModulesPaginated(opts, sentinelModules, big.NewInt(10))
		state.Modules = page.Array
		return wrapCall("getModulesPaginated", err)
	})
	g.Go(func() (err error) {
		state.ModuleEnabled, err = caller.IsModuleEnabled(opts, c.network.Safe4337Module)
		return wrapCall("isModuleEnabled", err)
	})
	g.Go(func() (err error) {
		state.Nonce, err = caller.Nonce(opts)
		return wrapCall("nonce", err)
	})
	g.Go(func() (err error) {
		state.EntryPointNonce, err = c.entrypoint.GetNonce(opts, addr, big.NewInt(0))
		return wrapCall("getNonce", err)
	})
	g.Go(func() error {
		// not every singleton exposes VERSION
		state.Version, _ = caller.VERSION(opts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

// ModuleInfo compares the module's entry point with the configured one.
type ModuleInfo struct {
	Module              common.Address
	Deployed            bool
	SupportedEntryPoint common.Address
	Matches             bool
	DomainSeparator     common.Hash
	DomainMatches       bool
}

// ModuleCheck reads SUPPORTED_ENTRYPOINT and the EIP-712 domain separator from
// the Safe 4337 module.
func (c *Client) ModuleCheck(ctx context.Context) (*ModuleInfo, error) {
	info := &ModuleInfo{Module: c.network.Safe4337Module}
	deployed, err := IsAccountDeployed(ctx, c.eth, info.Module)
	if err != nil {
		return nil, fmt.Errorf("error checking module deployment: %w", err)
	}
	info.Deployed = deployed
	if !deployed {
		return info, fmt.Errorf("safe 4337 module %s: %w", info.Module.Hex(), ErrNotDeployed)
	}
	ep, err := c.module.SUPPORTEDENTRYPOINT(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("error calling SUPPORTED_ENTRYPOINT: %w", err)
	}
	info.SupportedEntryPoint = ep
	info.Matches = ep == c.network.EntryPoint

	domain, err := c.module.DomainSeparator(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("error calling domainSeparator: %w", err)
	}
	local, err := SafeOpDomainSeparator(c.chainId, info.Module)
	if err != nil {
		return nil, err
	}
	info.DomainSeparator = domain
	info.DomainMatches = info.DomainSeparator == local
	return info, nil
}

// FundingAdvice tells whether an account holds enough ETH for deployments.
type FundingAdvice struct {
	Account    common.Address
	Balance    *big.Int
	Threshold  *big.Int
	Sufficient bool
	Faucets    []string
}

// Faucets lists public faucets for the default network.
var Faucets = []string{
	"https://sepoliafaucet.com",
	"https://www.alchemy.com/faucets/ethereum-sepolia",
	"https://cloud.google.com/application/web3/faucet/ethereum/sepolia",
}

// Funding compares the balance of account with DeploymentThreshold.
func (c *Client) Funding(ctx context.Context, account common.Address) (*FundingAdvice, error) {
	balance, err := c.GetAccountBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	advice := &FundingAdvice{
		Account:    account,
		Balance:    balance,
		Threshold:  DeploymentThreshold,
		Sufficient: balance.Cmp(DeploymentThreshold) >= 0,
	}
	if !advice.Sufficient {
		advice.Faucets = Faucets
	}
	return advice, nil
}

func wrapCall(method string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("error calling %s: %w", method, err)
}
