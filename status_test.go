package safe4337

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
	"github.com/stretchr/testify/require"
)

func TestNetworkCheck(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, PaymentNative)

	info, err := client.NetworkCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(123), info.BlockNumber)
	require.True(t, info.Matches())

	info.ExpectedChain = 1
	require.False(t, info.Matches())
}

func TestInfrastructureCheck(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	node.setCode(network.EntryPoint, []byte{1, 2, 3})
	node.setCode(network.MultiSend, []byte{1})
	client := newTestClient(t, node, PaymentNative)

	checks, err := client.InfrastructureCheck(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 6)

	byName := make(map[string]ContractCheck)
	for _, c := range checks {
		byName[c.Name] = c
	}
	require.Equal(t, "EntryPoint", checks[0].Name)
	require.True(t, byName["EntryPoint"].Deployed)
	require.Equal(t, 3, byName["EntryPoint"].CodeSize)
	require.True(t, byName["MultiSend"].Deployed)
	require.False(t, byName["SafeProxyFactory"].Deployed)
	require.False(t, byName["Safe4337Module"].Deployed)
}

func TestModuleCheck(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	client := newTestClient(t, node, PaymentNative)

	info, err := client.ModuleCheck(context.Background())
	require.ErrorIs(t, err, ErrNotDeployed)
	require.False(t, info.Deployed)

	node.setCode(network.Safe4337Module, []byte{1})
	node.setCall(t, network.Safe4337Module, safe.Safe4337ModuleMetaData, "SUPPORTED_ENTRYPOINT", network.EntryPoint)
	domain, err := SafeOpDomainSeparator(node.chainId, network.Safe4337Module)
	require.NoError(t, err)
	node.setCall(t, network.Safe4337Module, safe.Safe4337ModuleMetaData, "domainSeparator", domain)
	info, err = client.ModuleCheck(context.Background())
	require.NoError(t, err)
	require.True(t, info.Matches)
	require.Equal(t, network.EntryPoint, info.SupportedEntryPoint)
	require.True(t, info.DomainMatches)

	// a module answering for another chain
	other, err := SafeOpDomainSeparator(big.NewInt(1), network.Safe4337Module)
	require.NoError(t, err)
	node.setCall(t, network.Safe4337Module, safe.Safe4337ModuleMetaData, "domainSeparator", other)
	info, err = client.ModuleCheck(context.Background())
	require.NoError(t, err)
	require.False(t, info.DomainMatches)
	require.Equal(t, other, info.DomainSeparator)
}

func TestSafeStatusUndeployed(t *testing.T) {
	node := newFakeNode()
	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setBalance(addr, big.NewInt(7))
	client := newTestClient(t, node, PaymentNative)

	state, err := client.SafeStatus(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, state.Deployed)
	require.Equal(t, int64(7), state.Balance.Int64())
	require.Empty(t, state.Owners)
}

func TestFunding(t *testing.T) {
	node := newFakeNode()
	poor := common.HexToAddress("0x6666666666666666666666666666666666666666")
	rich := common.HexToAddress("0x7777777777777777777777777777777777777777")
	node.setBalance(poor, big.NewInt(1e15))
	node.setBalance(rich, big.NewInt(1e17))
	client := newTestClient(t, node, PaymentNative)

	advice, err := client.Funding(context.Background(), poor)
	require.NoError(t, err)
	require.False(t, advice.Sufficient)
	require.NotEmpty(t, advice.Faucets)

	advice, err = client.Funding(context.Background(), rich)
	require.NoError(t, err)
	require.True(t, advice.Sufficient)
	require.Empty(t, advice.Faucets)
}

func TestSafeStatusDeployed(t *testing.T) {
	node := newFakeNode()
	network := Sepolia()
	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	owner := common.HexToAddress("0x7777777777777777777777777777777777777777")
	node.setCode(addr, []byte{0x60, 0x80})
	node.setBalance(addr, big.NewInt(9))
	node.setCall(t, addr, safe.SafeMetaData, "getOwners", []common.Address{owner})
	node.setCall(t, addr, safe.SafeMetaData, "getThreshold", big.NewInt(1))
	node.setCall(t, addr, safe.SafeMetaData, "getModulesPaginated", []common.Address{network.Safe4337Module}, sentinelModules)
	node.setCall(t, addr, safe.SafeMetaData, "isModuleEnabled", true)
	node.setCall(t, addr, safe.SafeMetaData, "nonce", big.NewInt(4))
	node.setCall(t, addr, safe.SafeMetaData, "VERSION", "1.4.1")
	node.setCall(t, network.EntryPoint, entrypoint.EntryPointMetaData, "getNonce", big.NewInt(11))
	client := newTestClient(t, node, PaymentNative)

	state, err := client.SafeStatus(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, state.Deployed)
	require.Equal(t, int64(9), state.Balance.Int64())
	require.Equal(t, []common.Address{owner}, state.Owners)
	require.Equal(t, int64(1), state.Threshold.Int64())
	require.Equal(t, []common.Address{network.Safe4337Module}, state.Modules)
	require.True(t, state.ModuleEnabled)
	require.Equal(t, int64(4), state.Nonce.Int64())
	require.Equal(t, int64(11), state.EntryPointNonce.Int64())
	require.Equal(t, "1.4.1", state.Version)
}

func TestSafeStatusCallFails(t *testing.T) {
	node := newFakeNode()
	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.setCode(addr, []byte{0x60, 0x80})
	client := newTestClient(t, node, PaymentNative)

	// no Safe behind the address: every call reverts
	_, err := client.SafeStatus(context.Background(), addr)
	require.ErrorContains(t, err, "error calling")
}
