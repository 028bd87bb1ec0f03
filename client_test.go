package safe4337

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreationCode = common.FromHex("0x608060405234801561001057600080fd5b506040516101e63803806101e6")

func TestGetAccount(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	node.setCall(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode", testCreationCode)
	client := newTestClient(t, node, PaymentNative)
	ctx := context.Background()

	owner := common.HexToAddress("0x7777777777777777777777777777777777777777")
	initializer, err := client.SafeInitializer(owner)
	require.NoError(t, err)

	for _, salt := range []*big.Int{nil, big.NewInt(1), big.NewInt(1)} {
		addr, err := client.GetAccount(ctx, owner, salt)
		require.NoError(t, err)
		expected := PredictSafeAddress(network.SafeFactory, network.SafeSingleton, testCreationCode, initializer, orZero(salt))
		require.Equal(t, expected, addr)
	}

	// the creation code is fetched once and cached with the predictions
	require.Equal(t, 1, node.hits(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode"))
}

func TestGetAccountDependsOnNetwork(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	node.setCall(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode", testCreationCode)
	client := newTestClient(t, node, PaymentNative)

	owner := common.HexToAddress("0x7777777777777777777777777777777777777777")
	a, err := client.GetAccount(context.Background(), owner, big.NewInt(0))
	require.NoError(t, err)
	b, err := client.GetAccount(context.Background(), owner, big.NewInt(1))
	require.NoError(t, err)
	c, err := client.GetAccount(context.Background(), common.HexToAddress("0x8888888888888888888888888888888888888888"), big.NewInt(0))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGetAccountSharedCache(t *testing.T) {
	node := newFakeNode()
	node.setCall(t, Sepolia().SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode", testCreationCode)
	url := node.serve(t)
	cache, err := NewLRUCache(16)
	require.NoError(t, err)

	// the networks only differ in the module setup contract
	other := Sepolia()
	other.SafeModuleSetup = common.HexToAddress("0x4444444444444444444444444444444444444444")
	first := newConfiguredClient(t, url, cache, func(*Config) {})
	second := newConfiguredClient(t, url, cache, func(config *Config) { config.Network = other })

	owner := common.HexToAddress("0x7777777777777777777777777777777777777777")
	a, err := first.GetAccount(context.Background(), owner, big.NewInt(0))
	require.NoError(t, err)
	b, err := second.GetAccount(context.Background(), owner, big.NewInt(0))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEqual(t, safeAddressKey(Sepolia(), owner, big.NewInt(0)), safeAddressKey(other, owner, big.NewInt(0)))

	initializer, err := second.SafeInitializer(owner)
	require.NoError(t, err)
	require.Equal(t, PredictSafeAddress(other.SafeFactory, other.SafeSingleton, testCreationCode, initializer, big.NewInt(0)), b)
}

func TestSimulateSafeAddress(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	proxy := common.HexToAddress("0x5555555555555555555555555555555555555555")
	node.setCall(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "createProxyWithNonce", proxy)
	client := newTestClient(t, node, PaymentNative)

	addr, err := client.SimulateSafeAddress(context.Background(), common.HexToAddress("0x7777777777777777777777777777777777777777"), big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, proxy, addr)
}

func TestFillAndSignUndeployedSponsored(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	node.setCall(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode", testCreationCode)
	node.setCall(t, network.EntryPoint, entrypoint.EntryPointMetaData, "getNonce", big.NewInt(0))
	client := newTestClient(t, node, PaymentSponsored)
	ctx := context.Background()

	key := generatePrivateKey(t)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	sender, err := client.GetAccount(ctx, owner, nil)
	require.NoError(t, err)

	calldata, err := PackTransferData(owner, big.NewInt(1))
	require.NoError(t, err)
	signed, hash, err := client.FillAndSign(ctx, NewUserOpWithDefault(sender, calldata, nil), key)
	require.NoError(t, err)

	require.Equal(t, int64(0), signed.Nonce.Int64())
	require.Equal(t, network.SafeFactory, signed.Factory)
	initializer, err := client.SafeInitializer(owner)
	require.NoError(t, err)
	factoryData, err := SafeFactoryData(network.SafeSingleton, initializer, nil)
	require.NoError(t, err)
	require.Equal(t, factoryData, signed.FactoryData)
	require.Zero(t, signed.MaxFeePerGas.Sign())
	require.Zero(t, signed.MaxPriorityFeePerGas.Sign())

	safeOpHash, err := client.SafeOpHash(signed)
	require.NoError(t, err)
	recovered, err := SafeOpSigner(safeOpHash, signed.Signature)
	require.NoError(t, err)
	require.Equal(t, owner, recovered)

	packed := PackUserOperation(signed)
	expected, err := GetUserOpHash(&packed, network.EntryPoint, node.chainId)
	require.NoError(t, err)
	require.Equal(t, expected, hash)
}

func TestFillAndSignDeployedNative(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	client := newTestClient(t, node, PaymentNative)

	key := generatePrivateKey(t)
	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})

	op := NewUserOpWithDefault(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(5)
	signed, _, err := client.FillAndSign(context.Background(), op, key)
	require.NoError(t, err)

	require.Equal(t, common.Address{}, signed.Factory)
	require.Empty(t, signed.FactoryData)
	require.Equal(t, big.NewInt(DefaultMaxFeePerGas), signed.MaxFeePerGas)
	require.Equal(t, int64(5), signed.Nonce.Int64())
	// nonce, fees and gas were preset: nothing was asked from the entry point
	require.Zero(t, node.hits(t, network.EntryPoint, entrypoint.EntryPointMetaData, "getNonce"))
}

func TestFillAndSignEstimatesGas(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentNative)

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})

	op := NewUserOp(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(0)
	op.MaxFeePerGas = big.NewInt(DefaultMaxFeePerGas)
	op.MaxPriorityFeePerGas = big.NewInt(DefaultMaxPriorityFeePerGas)
	signed, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.NoError(t, err)
	require.Equal(t, int64(100000), signed.CallGasLimit.Int64())
	require.Equal(t, int64(400000), signed.VerificationGasLimit.Int64())
	require.Equal(t, int64(50000), signed.PreVerificationGas.Int64())
}

func TestFillAndSignRejectsForeignSender(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	node.setCall(t, network.SafeFactory, safe.SafeProxyFactoryMetaData, "proxyCreationCode", testCreationCode)
	client := newTestClient(t, node, PaymentSponsored)

	op := NewUserOpWithDefault(common.HexToAddress("0x6666666666666666666666666666666666666666"), nil, nil)
	op.Nonce = big.NewInt(0)
	_, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.ErrorContains(t, err, "is not the safe of owner")

	_, _, err = client.FillAndSign(context.Background(), op, nil)
	require.ErrorIs(t, err, ErrMissingSigner)
	_, _, err = client.FillAndSign(context.Background(), NewUserOp(common.Address{}, nil, nil), generatePrivateKey(t))
	require.ErrorIs(t, err, ErrEmptySender)
}

func TestGetAccountBalance(t *testing.T) {
	node := newFakeNode()
	account := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setBalance(account, big.NewInt(42))
	client := newTestClient(t, node, PaymentNative)

	balance, err := client.GetAccountBalance(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())

	deployed, err := client.IsDeployed(context.Background(), account)
	require.NoError(t, err)
	require.False(t, deployed)
	require.Equal(t, int64(11155111), client.ChainId().Int64())
}

func TestFillAndSignERC20(t *testing.T) {
	node := newFakeNode()
	paymaster := common.HexToAddress("0x9999999999999999999999999999999999999999")
	node.sponsorship = map[string]string{
		"paymaster":                     paymaster.Hex(),
		"paymasterData":                 "0xabcd",
		"paymasterVerificationGasLimit": "0x7530",
		"paymasterPostOpGasLimit":       "0x2710",
		"callGasLimit":                  "0x1",
		"verificationGasLimit":          "0x2",
		"preVerificationGas":            "0x3",
	}
	client := newTestClient(t, node, PaymentERC20)

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})
	op := NewUserOp(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(0)
	op.MaxFeePerGas = big.NewInt(DefaultMaxFeePerGas)
	op.MaxPriorityFeePerGas = big.NewInt(DefaultMaxPriorityFeePerGas)

	key := generatePrivateKey(t)
	signed, _, err := client.FillAndSign(context.Background(), op, key)
	require.NoError(t, err)
	require.Equal(t, "erc20", node.context("type"))
	require.Equal(t, Sepolia().TestToken.Hex(), node.context("token"))

	require.Equal(t, paymaster, signed.Paymaster)
	require.Equal(t, []byte{0xab, 0xcd}, signed.PaymasterData)
	require.Equal(t, int64(30000), signed.PaymasterVerificationGasLimit.Int64())
	require.Equal(t, int64(10000), signed.PaymasterPostOpGasLimit.Int64())
	// the paymaster chose the gas limits, the bundler was not asked
	require.Equal(t, int64(1), signed.CallGasLimit.Int64())
	require.Equal(t, int64(2), signed.VerificationGasLimit.Int64())
	require.Equal(t, int64(3), signed.PreVerificationGas.Int64())

	safeOpHash, err := client.SafeOpHash(signed)
	require.NoError(t, err)
	recovered, err := SafeOpSigner(safeOpHash, signed.Signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestFillAndSignERC20Rejected(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentERC20)

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})
	op := NewUserOpWithDefault(sender, nil, nil)
	op.Nonce = big.NewInt(0)
	_, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32602, rpcErr.Code)
}

func TestFillAndSignVerifyingPaymaster(t *testing.T) {
	node := newFakeNode()
	paymaster := common.HexToAddress("0x9999999999999999999999999999999999999999")
	verifier := generatePrivateKey(t)
	client := newConfiguredClient(t, node.serve(t), nil, func(config *Config) {
		config.Payment = PaymentVerifying
		config.PaymasterAddress = &paymaster
		config.VerifyingSigner = verifier
	})

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})
	op := NewUserOp(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(0)
	op.MaxFeePerGas = big.NewInt(DefaultMaxFeePerGas)
	op.MaxPriorityFeePerGas = big.NewInt(DefaultMaxPriorityFeePerGas)

	key := generatePrivateKey(t)
	signed, _, err := client.FillAndSign(context.Background(), op, key)
	require.NoError(t, err)
	require.Equal(t, paymaster, signed.Paymaster)
	require.Equal(t, int64(100000), signed.CallGasLimit.Int64())
	require.Equal(t, int64(400000), signed.VerificationGasLimit.Int64())
	require.Equal(t, int64(DefaultPaymasterVerificationGasLimit), signed.PaymasterVerificationGasLimit.Int64())

	// validUntil(32) || validAfter(32) || signature(65)
	require.Len(t, signed.PaymasterData, 64+crypto.SignatureLength)
	validUntil := new(big.Int).SetBytes(signed.PaymasterData[:32])
	validAfter := new(big.Int).SetBytes(signed.PaymasterData[32:64])
	require.Equal(t, int64(0xffffffffffff), validUntil.Int64())
	require.Zero(t, validAfter.Sign())

	// the paymaster signature covers the estimated gas limits
	packed := PackUserOperation(signed)
	paymasterHash, err := GetPaymasterHash(&packed, node.chainId, validUntil, validAfter)
	require.NoError(t, err)
	sig := append([]byte{}, signed.PaymasterData[64:]...)
	sig[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(paymasterHash.Bytes()), sig)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(verifier.PublicKey), crypto.PubkeyToAddress(*pub))

	safeOpHash, err := client.SafeOpHash(signed)
	require.NoError(t, err)
	recovered, err := SafeOpSigner(safeOpHash, signed.Signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestFillAndSignVerifyingWithoutSigner(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentVerifying)

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})
	op := NewUserOpWithDefault(sender, nil, nil)
	op.Nonce = big.NewInt(0)
	_, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.ErrorIs(t, err, ErrMissingSigner)
}

func TestFillAndSignNodeFees(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentNative)

	sender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(sender, []byte{0x60, 0x80})
	op := NewUserOp(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(0)
	signed, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.NoError(t, err)

	// maxFee = 2 * baseFee + tip
	require.Equal(t, node.tip, signed.MaxPriorityFeePerGas)
	require.Equal(t, big.NewInt(7e9), signed.MaxFeePerGas)

	// a preset priority fee is kept
	op = NewUserOp(sender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(1)
	op.MaxPriorityFeePerGas = big.NewInt(2e9)
	signed, _, err = client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2e9), signed.MaxPriorityFeePerGas)
	require.Equal(t, big.NewInt(7e9), signed.MaxFeePerGas)
}

func TestFillAndSignRejectsValidityOverflow(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentNative)

	op := NewUserOpWithDefault(common.HexToAddress("0x6666666666666666666666666666666666666666"), nil, nil)
	op.Nonce = big.NewInt(0)
	op.ValidUntil = MaxSafeOpTimestamp + 1
	_, _, err := client.FillAndSign(context.Background(), op, generatePrivateKey(t))
	require.ErrorIs(t, err, ErrInvalidValidity)
}

func TestOnChainHashes(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	client := newTestClient(t, node, PaymentNative)

	op := NewUserOpWithDefault(testSender, []byte{0x01}, nil)
	op.Nonce = big.NewInt(3)
	_, err := client.OperationHashOnChain(context.Background(), op)
	require.ErrorContains(t, err, "not signed")

	op.Signature = DummySafeSignature(0, 0)
	safeOpHash, err := client.SafeOpHash(op)
	require.NoError(t, err)
	node.setCall(t, network.Safe4337Module, safe.Safe4337ModuleMetaData, "getOperationHash", safeOpHash)
	onChain, err := client.OperationHashOnChain(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, safeOpHash, onChain)
	require.Equal(t, 1, node.hits(t, network.Safe4337Module, safe.Safe4337ModuleMetaData, "getOperationHash"))

	packed := PackUserOperation(op)
	userOpHash, err := GetUserOpHash(&packed, network.EntryPoint, node.chainId)
	require.NoError(t, err)
	node.setCall(t, network.EntryPoint, entrypoint.EntryPointMetaData, "getUserOpHash", userOpHash)
	onChain, err = client.UserOpHashOnChain(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, userOpHash, onChain)
}
