package safe4337

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
)

const (
	MessagePrefix = "\x19Ethereum Signed Message:\n"

	// validAfter(6) || validUntil(6) precede the owner signatures.
	SafeOpTimestampsLength = 12

	// MaxSafeOpTimestamp is the largest uint48 validity bound.
	MaxSafeOpTimestamp = 1<<48 - 1
)

var (
	domainSeparatorTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeOpTypeHash          = crypto.Keccak256Hash([]byte(
		"SafeOp(address safe,uint256 nonce,bytes initCode,bytes callData,uint128 verificationGasLimit," +
			"uint128 callGasLimit,uint256 preVerificationGas,uint128 maxPriorityFeePerGas,uint128 maxFeePerGas," +
			"bytes paymasterAndData,uint48 validAfter,uint48 validUntil,address entryPoint)",
	))
)

// SignMessage signs a message with the provided private key.
func SignMessage(privateKey *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	prefixedMessage := fmt.Sprintf("%s%d", MessagePrefix, len(message))
	bytes := append([]byte(prefixedMessage), message...)
	hash := crypto.Keccak256Hash(bytes)
	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

// SafeOpDomainSeparator is the EIP-712 domain of the Safe 4337 module.
func SafeOpDomainSeparator(chainId *big.Int, module common.Address) (common.Hash, error) {
	packed, err := abi.Arguments{
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}},
		{Type: abi.Type{T: abi.UintTy, Size: 256}},
		{Type: abi.Type{T: abi.AddressTy}},
	}.Pack(domainSeparatorTypeHash, chainId, module)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack error in SafeOpDomainSeparator: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// SafeOpHash returns the EIP-712 hash the Safe owners sign for a user operation.
func SafeOpHash(
	packedUserOp *entrypoint.PackedUserOperation,
	chainId *big.Int,
	module common.Address,
	entryPoint common.Address,
	validAfter uint64,
	validUntil uint64,
) (common.Hash, error) {
	if err := checkSafeOpTimestamps(validAfter, validUntil); err != nil {
		return common.Hash{}, err
	}
	domain, err := SafeOpDomainSeparator(chainId, module)
	if err != nil {
		return common.Hash{}, err
	}
	verificationGasLimit, callGasLimit := UnpackInt(packedUserOp.AccountGasLimits)
	maxPriorityFeePerGas, maxFeePerGas := UnpackInt(packedUserOp.GasFees)

	args := abi.Arguments{
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // typehash
		{Type: abi.Type{T: abi.AddressTy}},              // safe
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      // nonce
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // initCode
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // callData
		{Type: abi.Type{T: abi.UintTy, Size: 128}},      // verificationGasLimit
		{Type: abi.Type{T: abi.UintTy, Size: 128}},      // callGasLimit
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      // preVerificationGas
		{Type: abi.Type{T: abi.UintTy, Size: 128}},      // maxPriorityFeePerGas
		{Type: abi.Type{T: abi.UintTy, Size: 128}},      // maxFeePerGas
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, // paymasterAndData
		{Type: abi.Type{T: abi.UintTy, Size: 48}},       // validAfter
		{Type: abi.Type{T: abi.UintTy, Size: 48}},       // validUntil
		{Type: abi.Type{T: abi.AddressTy}},              // entryPoint
	}
	packed, err := args.Pack(
		safeOpTypeHash,
		packedUserOp.Sender,
		orZero(packedUserOp.Nonce),
		crypto.Keccak256Hash(packedUserOp.InitCode),
		crypto.Keccak256Hash(packedUserOp.CallData),
		verificationGasLimit,
		callGasLimit,
		orZero(packedUserOp.PreVerificationGas),
		maxPriorityFeePerGas,
		maxFeePerGas,
		crypto.Keccak256Hash(packedUserOp.PaymasterAndData),
		new(big.Int).SetUint64(validAfter),
		new(big.Int).SetUint64(validUntil),
		entryPoint,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack error in SafeOpHash: %w", err)
	}
	structHash := crypto.Keccak256Hash(packed)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domain.Bytes(), structHash.Bytes()), nil
}

// SignSafeOp signs hash as a single Safe owner and prepends the validity window.
// The ECDSA signature is over the raw EIP-712 hash, without message prefix.
func SignSafeOp(privateKey *ecdsa.PrivateKey, hash common.Hash, validAfter, validUntil uint64) ([]byte, error) {
	if err := checkSafeOpTimestamps(validAfter, validUntil); err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign safe operation: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return append(safeOpTimestamps(validAfter, validUntil), signature...), nil
}

// DummySafeSignature has the length and layout of a real one and is used for gas estimation.
// Bounds above MaxSafeOpTimestamp are saturated.
func DummySafeSignature(validAfter, validUntil uint64) []byte {
	sig := make([]byte, 65)
	for i := 0; i < 64; i++ {
		sig[i] = 0xff
	}
	sig[64] = 0x1c
	return append(safeOpTimestamps(validAfter, validUntil), sig...)
}

// SafeOpSigner recovers the owner that produced a SignSafeOp signature.
func SafeOpSigner(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SafeOpTimestampsLength+crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("unexpected signature length %d", len(signature))
	}
	sig := append([]byte{}, signature[SafeOpTimestampsLength:]...)
	sig[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func checkSafeOpTimestamps(validAfter, validUntil uint64) error {
	if validAfter > MaxSafeOpTimestamp {
		return fmt.Errorf("%w: validAfter %d exceeds uint48", ErrInvalidValidity, validAfter)
	}
	if validUntil > MaxSafeOpTimestamp {
		return fmt.Errorf("%w: validUntil %d exceeds uint48", ErrInvalidValidity, validUntil)
	}
	return nil
}

func safeOpTimestamps(validAfter, validUntil uint64) []byte {
	out := make([]byte, SafeOpTimestampsLength)
	copy(out[0:6], common.LeftPadBytes(new(big.Int).SetUint64(min(validAfter, MaxSafeOpTimestamp)).Bytes(), 6))
	copy(out[6:12], common.LeftPadBytes(new(big.Int).SetUint64(min(validUntil, MaxSafeOpTimestamp)).Bytes(), 6))
	return out
}
