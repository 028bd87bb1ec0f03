package safe4337

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
)

var _ Bundler = &Client{}
var _ BaseAccount = &Client{}

type Client struct {
	id         atomic.Uint64 // json-rpc request id
	chainId    *big.Int
	config     *Config
	network    *Network
	logger     *slog.Logger
	eth        *ethclient.Client
	http       *retryablehttp.Client
	entrypoint *entrypoint.EntryPoint
	factory    *safe.SafeProxyFactory
	module     *safe.Safe4337ModuleCaller
	factoryABI *abi.ABI
	epABI      *abi.ABI
	lruCache   LRUCache
}

// NewClient creates a new Client instance with given config.
// A nil cache disables caching of predicted Safe addresses.
func NewClient(config *Config, cache LRUCache) (*Client, error) {
	if config.Network == nil {
		config.Network = Sepolia()
	}
	if config.WaitReceiptInterval <= 0 {
		config.WaitReceiptInterval = DefaultWaitReceiptInterval
	}
	if config.ReceiptPollAttempts == 0 {
		config.ReceiptPollAttempts = DefaultReceiptPollAttempts
	}
	if config.Payment == "" {
		config.Payment = PaymentNative
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nodeUrl := config.NodeUrl
	if nodeUrl == "" {
		nodeUrl = config.Network.RpcUrl
	}

	eth, err := ethclient.Dial(nodeUrl)
	if err != nil {
		return nil, fmt.Errorf("error creating eth client: %w", err)
	}
	chainId, err := eth.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("error getting chain id: %w", err)
	}
	ep, err := entrypoint.NewEntryPoint(config.Network.EntryPoint, eth)
	if err != nil {
		return nil, fmt.Errorf("error creating entrypoint client: %w", err)
	}
	factory, err := safe.NewSafeProxyFactory(config.Network.SafeFactory, eth)
	if err != nil {
		return nil, fmt.Errorf("error creating safe factory client: %w", err)
	}
	module, err := safe.NewSafe4337ModuleCaller(config.Network.Safe4337Module, eth)
	if err != nil {
		return nil, fmt.Errorf("error creating safe 4337 module client: %w", err)
	}
	factoryABI, err := safe.SafeProxyFactoryMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("error getting safe factory ABI: %w", err)
	}
	epABI, err := entrypoint.EntryPointMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("error getting entrypoint ABI: %w", err)
	}
	if config.Network.ChainID != 0 && chainId.Uint64() != config.Network.ChainID {
		logger.Debug("node chain id differs from network profile", "node", chainId, "profile", config.Network.ChainID)
	}

	c := &Client{
		chainId:    chainId,
		config:     config,
		network:    config.Network,
		logger:     logger,
		eth:        eth,
		http:       newHTTPClient(logger),
		entrypoint: ep,
		factory:    factory,
		module:     module,
		factoryABI: factoryABI,
		epABI:      epABI,
		lruCache:   cache,
	}
	return c, nil
}

// GetAccount returns the counterfactual address of the 1/1 Safe owned by owner.
func (c *Client) GetAccount(ctx context.Context, owner common.Address, saltNonce *big.Int) (common.Address, error) {
	saltNonce = orZero(saltNonce)
	key := safeAddressKey(c.network, owner, saltNonce)
	if c.lruCache != nil {
		if addr, ok := c.lruCache.Get(key); ok {
			return addr.(common.Address), nil
		}
	}
	initializer, err := c.SafeInitializer(owner)
	if err != nil {
		return common.Address{}, err
	}
	creationCode, err := c.proxyCreationCode(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("error getting proxy creation code: %w", err)
	}
	addr := PredictSafeAddress(c.network.SafeFactory, c.network.SafeSingleton, creationCode, initializer, saltNonce)
	if c.lruCache != nil {
		c.lruCache.Set(key, addr)
	}
	return addr, nil
}

// SafeInitializer is the setup call of a 1/1 Safe with the 4337 module enabled.
func (c *Client) SafeInitializer(owner common.Address) ([]byte, error) {
	data, err := SafeSetupData(&SafeSetup{
		Owners:      []common.Address{owner},
		Threshold:   1,
		ModuleSetup: c.network.SafeModuleSetup,
		Module:      c.network.Safe4337Module,
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding safe initializer: %w", err)
	}
	return data, nil
}

// SimulateSafeAddress asks the factory, through eth_call, where it would deploy the Safe.
func (c *Client) SimulateSafeAddress(ctx context.Context, owner common.Address, saltNonce *big.Int) (common.Address, error) {
	initializer, err := c.SafeInitializer(owner)
	if err != nil {
		return common.Address{}, err
	}
	data, err := SafeFactoryData(c.network.SafeSingleton, initializer, saltNonce)
	if err != nil {
		return common.Address{}, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.network.SafeFactory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("error simulating createProxyWithNonce: %w", err)
	}
	values, err := c.factoryABI.Unpack("createProxyWithNonce", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("error decoding createProxyWithNonce result: %w", err)
	}
	return *abi.ConvertType(values[0], new(common.Address)).(*common.Address), nil
}

func (c *Client) proxyCreationCode(ctx context.Context) ([]byte, error) {
	key := "proxyCreationCode-" + c.network.SafeFactory.Hex()
	if c.lruCache != nil {
		if code, ok := c.lruCache.Get(key); ok {
			return code.([]byte), nil
		}
	}
	code, err := c.factory.ProxyCreationCode(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	if c.lruCache != nil {
		c.lruCache.Set(key, code)
	}
	return code, nil
}

// IsDeployed reports whether there is code at addr.
func (c *Client) IsDeployed(ctx context.Context, addr common.Address) (bool, error) {
	return IsAccountDeployed(ctx, c.eth, addr)
}

// GetAccountBalance returns the balance of the given account.
func (c *Client) GetAccountBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("error getting account balance: %w", err)
	}
	return balance, nil
}

// FillAndSign completes the user operation and signs it as the single Safe owner.
// Nonce, init code, fees, paymaster data and gas limits are only filled when unset.
// The returned hash is the EntryPoint user operation hash.
func (c *Client) FillAndSign(ctx context.Context, userOp *UserOperation, signer *ecdsa.PrivateKey) (*UserOperation, common.Hash, error) {
	if signer == nil {
		return nil, common.Hash{}, ErrMissingSigner
	}
	if userOp.Sender == (common.Address{}) {
		return nil, common.Hash{}, ErrEmptySender
	}
	if err := checkSafeOpTimestamps(userOp.ValidAfter, userOp.ValidUntil); err != nil {
		return nil, common.Hash{}, err
	}
	if userOp.Nonce == nil {
		nonce, err := c.entrypoint.GetNonce(&bind.CallOpts{Context: ctx}, userOp.Sender, big.NewInt(0))
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("error getting nonce: %w", err)
		}
		userOp.Nonce = nonce
	}

	if userOp.Factory == (common.Address{}) {
		if err := c.fillInitCode(ctx, userOp, crypto.PubkeyToAddress(signer.PublicKey)); err != nil {
			return nil, common.Hash{}, fmt.Errorf("error getting account init code: %w", err)
		}
	}

	if err := c.fillFees(ctx, userOp); err != nil {
		return nil, common.Hash{}, fmt.Errorf("error getting gas fees: %w", err)
	}

	userOp.Signature = DummySafeSignature(userOp.ValidAfter, userOp.ValidUntil)
	switch c.config.Payment {
	case PaymentERC20:
		hasGas, err := c.SponsorUserOperation(ctx, userOp, c.config.PaymentToken)
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("error getting paymaster data: %w", err)
		}
		if !hasGas {
			if err := c.estimateGas(ctx, userOp); err != nil {
				return nil, common.Hash{}, err
			}
		}
	case PaymentVerifying:
		if err := c.signVerifyingPaymaster(userOp); err != nil {
			return nil, common.Hash{}, err
		}
		if err := c.estimateGas(ctx, userOp); err != nil {
			return nil, common.Hash{}, err
		}
		// gas limits are covered by the paymaster signature
		if err := c.signVerifyingPaymaster(userOp); err != nil {
			return nil, common.Hash{}, err
		}
	default:
		if err := c.estimateGas(ctx, userOp); err != nil {
			return nil, common.Hash{}, err
		}
	}

	packed := PackUserOperation(userOp)
	safeOpHash, err := SafeOpHash(&packed, c.chainId, c.network.Safe4337Module, c.network.EntryPoint, userOp.ValidAfter, userOp.ValidUntil)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("error hashing safe operation: %w", err)
	}
	sig, err := SignSafeOp(signer, safeOpHash, userOp.ValidAfter, userOp.ValidUntil)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("error signing user operation: %w", err)
	}
	userOp.Signature = sig

	hash, err := GetUserOpHash(&packed, c.network.EntryPoint, c.chainId)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("error hashing user operation: %w", err)
	}
	c.logger.Debug("signed user operation", "sender", userOp.Sender, "nonce", userOp.Nonce, "userOpHash", hash, "safeOpHash", safeOpHash)
	return userOp, hash, nil
}

// fillInitCode sets factory and factoryData when the Safe is not deployed yet.
// The sender must be the Safe predicted for owner and the operation's salt nonce.
func (c *Client) fillInitCode(ctx context.Context, userOp *UserOperation, owner common.Address) error {
	isDeployed, err := IsAccountDeployed(ctx, c.eth, userOp.Sender)
	if err != nil {
		return fmt.Errorf("error checking if account is deployed: %w", err)
	}
	if isDeployed {
		return nil
	}
	predicted, err := c.GetAccount(ctx, owner, userOp.SaltNonce)
	if err != nil {
		return err
	}
	if predicted != userOp.Sender {
		return fmt.Errorf("sender %s is not the safe of owner %s with salt nonce %s (expected %s)",
			userOp.Sender.Hex(), owner.Hex(), orZero(userOp.SaltNonce), predicted.Hex())
	}
	initializer, err := c.SafeInitializer(owner)
	if err != nil {
		return err
	}
	data, err := SafeFactoryData(c.network.SafeSingleton, initializer, userOp.SaltNonce)
	if err != nil {
		return err
	}
	userOp.Factory = c.network.SafeFactory
	userOp.FactoryData = data
	return nil
}

// fillFees zeroes fees for sponsored operations and otherwise uses the node's
// suggestion when a fee is unset: maxFee = 2 * baseFee + tip.
func (c *Client) fillFees(ctx context.Context, userOp *UserOperation) error {
	if c.config.Payment == PaymentSponsored {
		userOp.MaxFeePerGas = big.NewInt(0)
		userOp.MaxPriorityFeePerGas = big.NewInt(0)
		return nil
	}
	if userOp.MaxFeePerGas != nil && userOp.MaxPriorityFeePerGas != nil {
		return nil
	}
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return err
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	maxFee := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		maxFee.Add(maxFee, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	if userOp.MaxPriorityFeePerGas == nil {
		userOp.MaxPriorityFeePerGas = tip
	}
	if userOp.MaxFeePerGas == nil {
		userOp.MaxFeePerGas = maxFee
	}
	return nil
}

// estimateGas asks the bundler for gas limits unless all of them are set.
func (c *Client) estimateGas(ctx context.Context, userOp *UserOperation) error {
	if userOp.CallGasLimit != nil && userOp.VerificationGasLimit != nil && userOp.PreVerificationGas != nil {
		return nil
	}
	estimates, err := c.EstimateUserOpGas(ctx, userOp)
	if err != nil {
		return fmt.Errorf("error estimating gas: %w", err)
	}
	userOp.CallGasLimit = estimates.CallGasLimit
	userOp.VerificationGasLimit = estimates.VerificationGasLimit
	userOp.PreVerificationGas = estimates.PreVerificationGas
	if userOp.Paymaster != (common.Address{}) {
		if estimates.PaymasterVerificationGasLimit != nil {
			userOp.PaymasterVerificationGasLimit = estimates.PaymasterVerificationGasLimit
		}
		if estimates.PaymasterPostOpGasLimit != nil {
			userOp.PaymasterPostOpGasLimit = estimates.PaymasterPostOpGasLimit
		}
	}
	return nil
}

// OperationHashOnChain asks the Safe 4337 module for the hash of a signed operation.
// It equals the SafeOpHash the owner signed.
func (c *Client) OperationHashOnChain(ctx context.Context, userOp *UserOperation) (common.Hash, error) {
	if len(userOp.Signature) < SafeOpTimestampsLength {
		return common.Hash{}, fmt.Errorf("user operation is not signed")
	}
	packed := PackUserOperation(userOp)
	hash, err := c.module.GetOperationHash(&bind.CallOpts{Context: ctx}, safe.PackedUserOperation(packed))
	if err != nil {
		return common.Hash{}, fmt.Errorf("error calling getOperationHash: %w", err)
	}
	return hash, nil
}

// UserOpHashOnChain asks the EntryPoint for the user operation hash of userOp.
// It equals GetUserOpHash computed locally.
func (c *Client) UserOpHashOnChain(ctx context.Context, userOp *UserOperation) (common.Hash, error) {
	hash, err := c.entrypoint.GetUserOpHash(&bind.CallOpts{Context: ctx}, PackUserOperation(userOp))
	if err != nil {
		return common.Hash{}, fmt.Errorf("error calling getUserOpHash: %w", err)
	}
	return hash, nil
}

// SafeOpHash returns the hash the owner signs for userOp on this client's chain.
func (c *Client) SafeOpHash(userOp *UserOperation) (common.Hash, error) {
	packed := PackUserOperation(userOp)
	return SafeOpHash(&packed, c.chainId, c.network.Safe4337Module, c.network.EntryPoint, userOp.ValidAfter, userOp.ValidUntil)
}

// ChainId returns the chain ID of the node.
func (c *Client) ChainId() *big.Int {
	return c.chainId
}

// Network returns the contract set the client is bound to.
func (c *Client) Network() *Network {
	return c.network
}

// Close releases the node connection.
func (c *Client) Close() {
	c.eth.Close()
}
