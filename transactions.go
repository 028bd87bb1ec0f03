package safe4337

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/counter"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/erc20"
)

// HandleOps submits user operations to the EntryPoint directly, from the next
// executor in rotation. It returns the user operation hashes and the transaction hash.
func (c *Client) HandleOps(ctx context.Context, ops []entrypoint.PackedUserOperation) ([]common.Hash, common.Hash, error) {
	if c.config.Executors == nil || c.config.Executors.Count() == 0 {
		return nil, common.Hash{}, fmt.Errorf("executor: %w", ErrMissingSigner)
	}
	executor := c.config.Executors.Next()

	txOpts, err := c.transactor(ctx, executor)
	if err != nil {
		return nil, common.Hash{}, err
	}
	beneficiary := crypto.PubkeyToAddress(executor.PublicKey)
	tx, err := c.entrypoint.HandleOps(txOpts, ops, beneficiary)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("error handling ops: %w", err)
	}
	opHashes := make([]common.Hash, 0, len(ops))
	for _, op := range ops {
		hashed, err := GetUserOpHash(&op, c.network.EntryPoint, c.chainId)
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("error hashing user operation: %w", err)
		}
		opHashes = append(opHashes, hashed)
	}
	c.logger.Debug("handleOps sent", "executor", beneficiary, "ops", len(ops), "tx", tx.Hash())
	return opHashes, tx.Hash(), nil
}

// WaitHandleOps waits for a handleOps transaction to be mined and returns the
// UserOperationEvent of every operation it executed.
func (c *Client) WaitHandleOps(ctx context.Context, txHash common.Hash) (*types.Receipt, []*entrypoint.EntryPointUserOperationEvent, error) {
	receipt, err := bind.WaitMinedHash(ctx, c.eth, txHash)
	if err != nil {
		return nil, nil, fmt.Errorf("error waiting for transaction %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, nil, errors.New("transaction " + txHash.Hex() + " reverted")
	}
	events, err := c.UserOperationEvents(receipt)
	return receipt, events, err
}

// UserOperationEvents parses the EntryPoint's UserOperationEvent logs of receipt.
func (c *Client) UserOperationEvents(receipt *types.Receipt) ([]*entrypoint.EntryPointUserOperationEvent, error) {
	event := c.epABI.Events["UserOperationEvent"]
	var events []*entrypoint.EntryPointUserOperationEvent
	for _, log := range receipt.Logs {
		if log.Address != c.network.EntryPoint || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		parsed, err := c.entrypoint.ParseUserOperationEvent(*log)
		if err != nil {
			return nil, fmt.Errorf("error parsing UserOperationEvent: %w", err)
		}
		events = append(events, parsed)
	}
	return events, nil
}

// Prefund deposits to entrypoint and waits for the transaction to be mined.
func (c *Client) Prefund(ctx context.Context, signer *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*types.Receipt, error) {
	txOpts, err := c.transactor(ctx, signer)
	if err != nil {
		return nil, err
	}
	txOpts.Value = amount
	tx, err := c.entrypoint.DepositTo(txOpts, to)
	if err != nil {
		return nil, fmt.Errorf("error depositing fund: %w", err)
	}
	return c.waitSuccess(ctx, tx)
}

// DepositOf returns the EntryPoint deposit of account.
func (c *Client) DepositOf(ctx context.Context, account common.Address) (*big.Int, error) {
	deposit, err := c.entrypoint.BalanceOf(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return nil, fmt.Errorf("error getting deposit: %w", err)
	}
	return deposit, nil
}

// DeploySafe deploys the 1/1 Safe of owner with a direct factory transaction
// sent by signer, and returns the proxy address from the ProxyCreation event.
func (c *Client) DeploySafe(ctx context.Context, signer *ecdsa.PrivateKey, owner common.Address, saltNonce *big.Int) (*types.Receipt, common.Address, error) {
	initializer, err := c.SafeInitializer(owner)
	if err != nil {
		return nil, common.Address{}, err
	}
	txOpts, err := c.transactor(ctx, signer)
	if err != nil {
		return nil, common.Address{}, err
	}
	tx, err := c.factory.CreateProxyWithNonce(txOpts, c.network.SafeSingleton, initializer, orZero(saltNonce))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("error creating safe: %w", err)
	}
	c.logger.Debug("safe deployment sent", "owner", owner, "saltNonce", saltNonce, "tx", tx.Hash())
	receipt, err := c.waitSuccess(ctx, tx)
	if err != nil {
		return receipt, common.Address{}, err
	}
	addr, err := c.SafeFromReceipt(receipt)
	if err != nil {
		return receipt, common.Address{}, err
	}
	return receipt, addr, nil
}

// SafeFromReceipt extracts the proxy address from the factory's ProxyCreation event.
func (c *Client) SafeFromReceipt(receipt *types.Receipt) (common.Address, error) {
	event := c.factoryABI.Events["ProxyCreation"]
	for _, log := range receipt.Logs {
		if log.Address != c.network.SafeFactory || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		parsed, err := c.factory.ParseProxyCreation(*log)
		if err != nil {
			return common.Address{}, fmt.Errorf("error parsing ProxyCreation: %w", err)
		}
		return parsed.Proxy, nil
	}
	return common.Address{}, fmt.Errorf("no ProxyCreation event in transaction %s", receipt.TxHash.Hex())
}

// SafeFromTx looks up a deployment transaction and returns the Safe it created.
func (c *Client) SafeFromTx(ctx context.Context, txHash common.Hash) (*types.Receipt, common.Address, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("error getting receipt: %w", err)
	}
	addr, err := c.SafeFromReceipt(receipt)
	return receipt, addr, err
}

// TransferNative sends amount wei from signer to to.
func (c *Client) TransferNative(ctx context.Context, signer *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*types.Receipt, error) {
	txOpts, err := c.transactor(ctx, signer)
	if err != nil {
		return nil, err
	}
	txOpts.Value = amount
	tx, err := bind.NewBoundContract(to, abi.ABI{}, c.eth, c.eth, c.eth).Transfer(txOpts)
	if err != nil {
		return nil, fmt.Errorf("error sending transfer: %w", err)
	}
	return c.waitSuccess(ctx, tx)
}

// TransferToken sends amount of an ERC-20 token from signer to to.
func (c *Client) TransferToken(ctx context.Context, signer *ecdsa.PrivateKey, token, to common.Address, amount *big.Int) (*types.Receipt, error) {
	contract, err := erc20.NewERC20(token, c.eth)
	if err != nil {
		return nil, err
	}
	txOpts, err := c.transactor(ctx, signer)
	if err != nil {
		return nil, err
	}
	tx, err := contract.Transfer(txOpts, to, amount)
	if err != nil {
		return nil, fmt.Errorf("error transferring token: %w", err)
	}
	return c.waitSuccess(ctx, tx)
}

// TokenInfo describes an ERC-20 token.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// TokenBalance returns the token balance of account along with the token metadata.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, *TokenInfo, error) {
	contract, err := erc20.NewERC20(token, c.eth)
	if err != nil {
		return nil, nil, err
	}
	opts := &bind.CallOpts{Context: ctx}
	balance, err := contract.BalanceOf(opts, account)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting token balance: %w", err)
	}
	info := &TokenInfo{Address: token, Decimals: 18}
	if symbol, err := contract.Symbol(opts); err == nil {
		info.Symbol = symbol
	}
	if decimals, err := contract.Decimals(opts); err == nil {
		info.Decimals = decimals
	}
	return balance, info, nil
}

// CounterValue reads count() of a counter contract.
func (c *Client) CounterValue(ctx context.Context, addr common.Address) (*big.Int, error) {
	contract, err := counter.NewCounter(addr, c.eth)
	if err != nil {
		return nil, err
	}
	value, err := contract.Count(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("error reading counter: %w", err)
	}
	return value, nil
}

func (c *Client) transactor(ctx context.Context, signer *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	if signer == nil {
		return nil, ErrMissingSigner
	}
	txOpts, err := bind.NewKeyedTransactorWithChainID(signer, c.chainId)
	if err != nil {
		return nil, fmt.Errorf("error creating transactor: %w", err)
	}
	txOpts.Context = ctx
	return txOpts, nil
}

// waitSuccess waits for tx to be mined and fails when it reverted.
func (c *Client) waitSuccess(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("error waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.New("transaction " + tx.Hash().Hex() + " reverted")
	}
	return receipt, nil
}
