package safe4337

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
)

const (
	PaymasterValidationGasOffset = 20
	PaymasterPostOpGasOffset     = 36
	PaymasterDataOffset          = 52
)

var (
	EmptySignature = make([]byte, 65)
)

// PaymentMode selects how a user operation pays for gas.
type PaymentMode string

const (
	// The Safe pays from its own ETH balance.
	PaymentNative PaymentMode = "native"
	// Gas is sponsored by the bundler, fees are zero and no paymaster is attached.
	PaymentSponsored PaymentMode = "sponsored"
	// An ERC-20 paymaster service charges PaymentToken.
	PaymentERC20 PaymentMode = "erc20"
	// A verifying paymaster signed locally with VerifyingSigner.
	PaymentVerifying PaymentMode = "verifying"
)

// ParsePaymentMode accepts the mode names case-insensitively. Empty means native.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch m := PaymentMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PaymentNative, nil
	case PaymentNative, PaymentSponsored, PaymentERC20, PaymentVerifying:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment mode %q (want native, sponsored, erc20 or verifying)", s)
	}
}

// GetPaymasterHash returns the hash to sign for a user operation
func GetPaymasterHash(
	packedUserOp *entrypoint.PackedUserOperation,
	chainId *big.Int,
	validUntil *big.Int,
	validAfter *big.Int,
) (common.Hash, error) {
	if len(packedUserOp.PaymasterAndData) < PaymasterDataOffset {
		return common.Hash{}, ErrPaymasterDataTooShort
	}
	paymaster := common.BytesToAddress(packedUserOp.PaymasterAndData[:PaymasterValidationGasOffset])
	args := abi.Arguments{
		{Type: abi.Type{T: abi.AddressTy}},              //	sender
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      //	nonce
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, //	initCode
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, //	callData
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, //	accountGasLimits
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      //	paymasterValidationGas
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      //	preVerificationGas
		{Type: abi.Type{T: abi.FixedBytesTy, Size: 32}}, //	gasFees
		{Type: abi.Type{T: abi.UintTy, Size: 256}},      //	chainId
		{Type: abi.Type{T: abi.AddressTy}},              //	paymaster's address
		{Type: abi.Type{T: abi.UintTy, Size: 48}},       //	validUntil
		{Type: abi.Type{T: abi.UintTy, Size: 48}},       //	validAfter
	}

	packed, err := args.Pack(
		packedUserOp.Sender,
		orZero(packedUserOp.Nonce),
		crypto.Keccak256Hash(packedUserOp.InitCode),
		crypto.Keccak256Hash(packedUserOp.CallData),
		packedUserOp.AccountGasLimits,
		new(big.Int).SetBytes(packedUserOp.PaymasterAndData[PaymasterValidationGasOffset:PaymasterDataOffset]),
		orZero(packedUserOp.PreVerificationGas),
		packedUserOp.GasFees,
		chainId,
		paymaster,
		validUntil,
		validAfter,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack error in GetPaymasterHash: %w", err)
	}

	return crypto.Keccak256Hash(packed), nil
}

// PackPaymasterAndData constructs paymasterAndData field
func PackPaymasterAndData(paymaster common.Address, verGasLimit, postOpGasLimit *big.Int, data []byte) []byte {
	verGasBytes := common.LeftPadBytes(orZero(verGasLimit).Bytes(), 16)
	postOpGasBytes := common.LeftPadBytes(orZero(postOpGasLimit).Bytes(), 16)

	length := len(paymaster) + len(verGasBytes) + len(postOpGasBytes) + len(data)
	result := make([]byte, 0, length)
	result = append(result, paymaster[:]...)   // 20 bytes
	result = append(result, verGasBytes...)    // 16 bytes
	result = append(result, postOpGasBytes...) // 16 bytes
	result = append(result, data...)           // variable length

	return result
}

// UnpackPaymasterAndData splits a packed paymasterAndData field.
func UnpackPaymasterAndData(packed []byte) (paymaster common.Address, verGasLimit, postOpGasLimit *big.Int, data []byte, err error) {
	if len(packed) < PaymasterDataOffset {
		return common.Address{}, nil, nil, nil, ErrPaymasterDataTooShort
	}
	paymaster = common.BytesToAddress(packed[:PaymasterValidationGasOffset])
	verGasLimit = new(big.Int).SetBytes(packed[PaymasterValidationGasOffset:PaymasterPostOpGasOffset])
	postOpGasLimit = new(big.Int).SetBytes(packed[PaymasterPostOpGasOffset:PaymasterDataOffset])
	data = append([]byte{}, packed[PaymasterDataOffset:]...)
	return paymaster, verGasLimit, postOpGasLimit, data, nil
}

// EncodePaymasterData encodes validUntil, validAfter, and signature into a byte array
func EncodePaymasterData(validUntil, validAfter *big.Int, signature []byte) ([]byte, error) {
	data, err := abi.Arguments{
		{Type: abi.Type{T: abi.UintTy, Size: 48}},
		{Type: abi.Type{T: abi.UintTy, Size: 48}},
	}.Pack(
		validUntil,
		validAfter,
	)
	if err != nil {
		return nil, err
	}
	data = append(data, signature...)
	return data, nil
}

// sponsorResult is the answer of pm_sponsorUserOperation. Services answer either
// with the split v0.7 fields or with a legacy packed paymasterAndData.
type sponsorResult struct {
	Paymaster                     *common.Address `json:"paymaster"`
	PaymasterData                 *hexutil.Bytes  `json:"paymasterData"`
	PaymasterVerificationGasLimit *string         `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *string         `json:"paymasterPostOpGasLimit"`
	PaymasterAndData              *hexutil.Bytes  `json:"paymasterAndData"`
	PreVerificationGas            *string         `json:"preVerificationGas"`
	VerificationGasLimit          *string         `json:"verificationGasLimit"`
	CallGasLimit                  *string         `json:"callGasLimit"`
}

// apply copies the paymaster fields, and any gas values the service chose, onto userOp.
// It reports whether the service provided the gas limits.
func (r *sponsorResult) apply(userOp *UserOperation) (bool, error) {
	switch {
	case r.Paymaster != nil:
		userOp.Paymaster = *r.Paymaster
		userOp.PaymasterData = nil
		if r.PaymasterData != nil {
			userOp.PaymasterData = *r.PaymasterData
		}
		if r.PaymasterVerificationGasLimit != nil {
			userOp.PaymasterVerificationGasLimit = HexToBigInt(*r.PaymasterVerificationGasLimit)
		}
		if r.PaymasterPostOpGasLimit != nil {
			userOp.PaymasterPostOpGasLimit = HexToBigInt(*r.PaymasterPostOpGasLimit)
		}
	case r.PaymasterAndData != nil && len(*r.PaymasterAndData) > 0:
		paymaster, verGas, postOpGas, data, err := UnpackPaymasterAndData(*r.PaymasterAndData)
		if err != nil {
			return false, err
		}
		userOp.Paymaster = paymaster
		userOp.PaymasterVerificationGasLimit = verGas
		userOp.PaymasterPostOpGasLimit = postOpGas
		userOp.PaymasterData = data
	default:
		return false, fmt.Errorf("paymaster response carries no paymaster")
	}

	hasGas := r.CallGasLimit != nil && r.VerificationGasLimit != nil && r.PreVerificationGas != nil
	if hasGas {
		userOp.CallGasLimit = HexToBigInt(*r.CallGasLimit)
		userOp.VerificationGasLimit = HexToBigInt(*r.VerificationGasLimit)
		userOp.PreVerificationGas = HexToBigInt(*r.PreVerificationGas)
	}
	return hasGas, nil
}

// SponsorUserOperation asks the paymaster service to pay for userOp.
// With a zero token the request is a plain sponsorship, otherwise the Safe pays in token.
// The signature on userOp must already have its final length.
func (c *Client) SponsorUserOperation(ctx context.Context, userOp *UserOperation, token common.Address) (bool, error) {
	if c.config.PaymasterUrl == "" {
		return false, fmt.Errorf("paymaster url is not configured")
	}
	pmContext := map[string]string{}
	if token != (common.Address{}) {
		pmContext["type"] = "erc20"
		pmContext["token"] = token.Hex()
	}
	var result sponsorResult
	err := c.callInto(ctx, c.config.PaymasterUrl, "pm_sponsorUserOperation",
		[]any{userOp.ToBody(), c.network.EntryPoint, pmContext}, &result)
	if err != nil {
		return false, fmt.Errorf("error calling pm_sponsorUserOperation: %w", err)
	}
	return result.apply(userOp)
}

// signVerifyingPaymaster attaches paymaster data signed by the local verifying signer.
// Gas fields must be final, the paymaster signature covers them.
func (c *Client) signVerifyingPaymaster(userOp *UserOperation) error {
	if c.config.PaymasterAddress == nil || c.config.VerifyingSigner == nil {
		return fmt.Errorf("verifying paymaster: %w", ErrMissingSigner)
	}
	validAfter := big.NewInt(0)
	validUntil := big.NewInt(0xffffffffffff)

	paymasterData, err := EncodePaymasterData(validUntil, validAfter, EmptySignature)
	if err != nil {
		return fmt.Errorf("error encoding paymaster data: %w", err)
	}
	userOp.Paymaster = *c.config.PaymasterAddress
	if userOp.PaymasterVerificationGasLimit == nil {
		userOp.PaymasterVerificationGasLimit = big.NewInt(DefaultPaymasterVerificationGasLimit)
	}
	if userOp.PaymasterPostOpGasLimit == nil {
		userOp.PaymasterPostOpGasLimit = big.NewInt(DefaultPaymasterPostOpGasLimit)
	}
	userOp.PaymasterData = paymasterData

	packed := PackUserOperation(userOp)
	paymasterHash, err := GetPaymasterHash(&packed, c.chainId, validUntil, validAfter)
	if err != nil {
		return fmt.Errorf("error getting paymaster hash: %w", err)
	}
	paymasterSig, err := SignMessage(c.config.VerifyingSigner, paymasterHash.Bytes())
	if err != nil {
		return fmt.Errorf("error signing paymaster data: %w", err)
	}
	paymasterData, err = EncodePaymasterData(validUntil, validAfter, paymasterSig)
	if err != nil {
		return fmt.Errorf("error encoding paymaster data: %w", err)
	}
	userOp.PaymasterData = paymasterData
	return nil
}
