package safe4337

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/counter"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/erc20"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
)

// Safe operation types.
const (
	OperationCall         uint8 = 0
	OperationDelegateCall uint8 = 1
)

// SafeSetup describes the initial configuration of a Safe.
type SafeSetup struct {
	Owners    []common.Address
	Threshold uint64
	// Delegate called by setup to enable Module.
	ModuleSetup common.Address
	// Enabled as module and installed as fallback handler.
	Module common.Address
}

func (s *SafeSetup) validate() error {
	if len(s.Owners) == 0 {
		return errors.New("safe needs at least one owner")
	}
	if s.Threshold == 0 || s.Threshold > uint64(len(s.Owners)) {
		return fmt.Errorf("threshold %d out of range 1..%d", s.Threshold, len(s.Owners))
	}
	return nil
}

// SafeSetupData encodes the Safe setup call used as proxy initializer.
func SafeSetupData(setup *SafeSetup) ([]byte, error) {
	if err := setup.validate(); err != nil {
		return nil, err
	}
	moduleSetupABI, err := safe.SafeModuleSetupMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	enableModules, err := moduleSetupABI.Pack("enableModules", []common.Address{setup.Module})
	if err != nil {
		return nil, fmt.Errorf("error packing enableModules: %w", err)
	}
	safeABI, err := safe.SafeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	data, err := safeABI.Pack("setup",
		setup.Owners,
		new(big.Int).SetUint64(setup.Threshold),
		setup.ModuleSetup,
		enableModules,
		setup.Module,
		common.Address{},
		big.NewInt(0),
		common.Address{},
	)
	if err != nil {
		return nil, fmt.Errorf("error packing safe setup: %w", err)
	}
	return data, nil
}

// SafeFactoryData encodes createProxyWithNonce, the factoryData of a user operation.
func SafeFactoryData(singleton common.Address, initializer []byte, saltNonce *big.Int) ([]byte, error) {
	factoryABI, err := safe.SafeProxyFactoryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	data, err := factoryABI.Pack("createProxyWithNonce", singleton, initializer, orZero(saltNonce))
	if err != nil {
		return nil, fmt.Errorf("error packing createProxyWithNonce: %w", err)
	}
	return data, nil
}

// PredictSafeAddress computes the CREATE2 address the factory deploys the proxy at.
func PredictSafeAddress(factory, singleton common.Address, proxyCreationCode, initializer []byte, saltNonce *big.Int) common.Address {
	salt := crypto.Keccak256Hash(
		crypto.Keccak256(initializer),
		common.LeftPadBytes(orZero(saltNonce).Bytes(), 32),
	)
	deploymentData := append(append([]byte{}, proxyCreationCode...), common.LeftPadBytes(singleton.Bytes(), 32)...)
	return crypto.CreateAddress2(factory, salt, crypto.Keccak256(deploymentData))
}

// ExecuteUserOpData encodes Safe4337Module.executeUserOp, the callData of a user operation.
func ExecuteUserOpData(to common.Address, value *big.Int, data []byte, operation uint8) ([]byte, error) {
	moduleABI, err := safe.Safe4337ModuleMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	packed, err := moduleABI.Pack("executeUserOp", to, orZero(value), data, operation)
	if err != nil {
		return nil, fmt.Errorf("error packing executeUserOp: %w", err)
	}
	return packed, nil
}

// PackMultiSend encodes calls in the MultiSend transaction format:
// operation(1) || to(20) || value(32) || dataLength(32) || data.
func PackMultiSend(calls []Call) []byte {
	var out []byte
	for _, call := range calls {
		out = append(out, call.Operation)
		out = append(out, call.To.Bytes()...)
		out = append(out, common.LeftPadBytes(orZero(call.Value).Bytes(), 32)...)
		out = append(out, common.LeftPadBytes(big.NewInt(int64(len(call.Data))).Bytes(), 32)...)
		out = append(out, call.Data...)
	}
	return out
}

// ExecuteBatchData executes calls atomically through a delegate call to MultiSend.
// A single call is sent directly.
func ExecuteBatchData(multiSend common.Address, calls []Call) ([]byte, error) {
	switch len(calls) {
	case 0:
		return nil, errors.New("no calls to execute")
	case 1:
		return ExecuteUserOpData(calls[0].To, calls[0].Value, calls[0].Data, calls[0].Operation)
	}
	multiSendABI, err := safe.MultiSendMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	data, err := multiSendABI.Pack("multiSend", PackMultiSend(calls))
	if err != nil {
		return nil, fmt.Errorf("error packing multiSend: %w", err)
	}
	return ExecuteUserOpData(multiSend, big.NewInt(0), data, OperationDelegateCall)
}

// PackTransferData packs a native transfer executed by the Safe.
func PackTransferData(target common.Address, value *big.Int) ([]byte, error) {
	return ExecuteUserOpData(target, value, nil, OperationCall)
}

// PackBatchTransferData packs several native transfers executed by the Safe.
func PackBatchTransferData(multiSend common.Address, dest []common.Address, value []*big.Int) ([]byte, error) {
	if len(dest) != len(value) {
		return nil, fmt.Errorf("dest and value length mismatch: %d != %d", len(dest), len(value))
	}
	calls := make([]Call, len(dest))
	for i := range dest {
		calls[i] = Call{To: dest[i], Value: value[i]}
	}
	return ExecuteBatchData(multiSend, calls)
}

// ERC20TransferCall builds the call moving amount of token to recipient.
func ERC20TransferCall(token, recipient common.Address, amount *big.Int) (Call, error) {
	data, err := packWith(erc20.ERC20MetaData.GetAbi, "transfer", recipient, amount)
	if err != nil {
		return Call{}, err
	}
	return Call{To: token, Value: big.NewInt(0), Data: data}, nil
}

// IncrementCall builds the call incrementing a counter contract.
func IncrementCall(counterAddr common.Address) (Call, error) {
	data, err := packWith(counter.CounterMetaData.GetAbi, "increment")
	if err != nil {
		return Call{}, err
	}
	return Call{To: counterAddr, Value: big.NewInt(0), Data: data}, nil
}

func packWith(getABI func() (*abi.ABI, error), method string, args ...any) ([]byte, error) {
	parsed, err := getABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("error packing %s: %w", method, err)
	}
	return data, nil
}
