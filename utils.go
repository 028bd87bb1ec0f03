package safe4337

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
)

// IsAccountDeployed checks if the account is deployed by querying its bytecode
func IsAccountDeployed(ctx context.Context, client bind.ContractCaller, address common.Address) (bool, error) {
	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// GetUserOpHash returns the hash the EntryPoint v0.7 assigns to a user operation.
func GetUserOpHash(packed *entrypoint.PackedUserOperation, entrypoint common.Address, chainId *big.Int) (common.Hash, error) {
	hashed, err := HashedUserOp(packed)
	if err != nil {
		return common.Hash{}, err
	}
	hashArgs := abi.Arguments{
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // userOp.hash
		{Type: abi.Type{T: abi.AddressTy}},              // entrypoint address
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      // chainID
	}
	packedHash, err := hashArgs.Pack(hashed, entrypoint, chainId)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packedHash), nil
}

func HashedUserOp(userOp *entrypoint.PackedUserOperation) (common.Hash, error) {
	arguments := abi.Arguments{
		{Type: abi.Type{T: abi.AddressTy}},              // sender
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      // nonce
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // hashInitCode
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // hashCallData
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // accountGasLimits
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      // preVerificationGas
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // gasFees
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // hashPaymasterAndData
	}

	packed, err := arguments.Pack(
		userOp.Sender,
		orZero(userOp.Nonce),
		crypto.Keccak256Hash(userOp.InitCode),
		crypto.Keccak256Hash(userOp.CallData),
		userOp.AccountGasLimits,
		orZero(userOp.PreVerificationGas),
		userOp.GasFees,
		crypto.Keccak256Hash(userOp.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// ParseHexBig parses a hex quantity. Leading zeros and a missing 0x prefix are accepted.
func ParseHexBig(s string) (*big.Int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// HexToBigInt is ParseHexBig for values already known to be well formed.
// Malformed input yields zero.
func HexToBigInt(hex string) *big.Int {
	n, err := ParseHexBig(hex)
	if err != nil {
		return new(big.Int)
	}
	return n
}

// PackInt packs two big.Ints into a common.Hash.
// The first 16 bytes are the first big.Int and the last 16 bytes are the second big.Int.
// A nil big.Int is packed as zero.
func PackInt(a *big.Int, b *big.Int) common.Hash {
	var result common.Hash
	copy(result[:], append(
		common.LeftPadBytes(orZero(a).Bytes(), 16),
		common.LeftPadBytes(orZero(b).Bytes(), 16)...,
	))
	return result
}

// UnpackInt splits a packed 32 byte word into its high and low 128 bit halves.
func UnpackInt(word [32]byte) (*big.Int, *big.Int) {
	return new(big.Int).SetBytes(word[:16]), new(big.Int).SetBytes(word[16:])
}

// PackUserOperation packs a user operation into a PackedUserOperation.
// initCode and paymasterAndData stay empty when there is no factory or paymaster.
// It panics if the user operation is nil.
func PackUserOperation(userOp *UserOperation) entrypoint.PackedUserOperation {
	if userOp == nil {
		panic("nil user operation")
	}
	var paymasterAndData []byte
	if userOp.Paymaster != (common.Address{}) {
		paymasterAndData = PackPaymasterAndData(userOp.Paymaster, userOp.PaymasterVerificationGasLimit, userOp.PaymasterPostOpGasLimit, userOp.PaymasterData)
	}
	return entrypoint.PackedUserOperation{
		Sender:             userOp.Sender,
		Nonce:              orZero(userOp.Nonce),
		InitCode:           userOp.InitCode(),
		CallData:           userOp.CallData,
		AccountGasLimits:   PackInt(userOp.VerificationGasLimit, userOp.CallGasLimit),
		PreVerificationGas: orZero(userOp.PreVerificationGas),
		GasFees:            PackInt(userOp.MaxPriorityFeePerGas, userOp.MaxFeePerGas),
		PaymasterAndData:   paymasterAndData,
		Signature:          userOp.Signature,
	}
}

// ParseUnits converts a decimal amount such as "0.01" to an integer with the given decimals.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(amount), ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", amount, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return n, nil
}

// ParseEther converts a decimal ether amount such as "0.01" to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, 18)
}

// OneEther is 10^18 wei.
var OneEther = big.NewInt(params.Ether)

// FormatUnits renders an integer amount with the given number of decimals.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	q, r := new(big.Int).QuoRem(new(big.Int).Abs(amount), unit, new(big.Int))
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if r.Sign() == 0 || decimals == 0 {
		return sign + q.String()
	}
	frac := fmt.Sprintf("%0*s", int(decimals), r.String())
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}

// FormatEther renders wei as ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}
