package safe4337

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	DefaultCallGasLimit                  = int64(500000)
	DefaultVerificationGasLimit          = int64(500000)
	DefaultPreVerificationGas            = int64(100000)
	DefaultMaxFeePerGas                  = int64(25e9)
	DefaultMaxPriorityFeePerGas          = int64(1e9)
	DefaultPaymasterVerificationGasLimit = int64(3e5)
	DefaultPaymasterPostOpGasLimit       = int64(1e5)

	DefaultWaitReceiptInterval = 5 * time.Second
	DefaultReceiptPollAttempts = uint(30)
)

type Config struct {
	// The url of node.
	NodeUrl string
	// The url of bundler.
	BundlerUrl string
	// The url of the paymaster service, used by PaymentERC20.
	PaymasterUrl string
	// The interval to query the receipt.
	WaitReceiptInterval time.Duration
	// How many times the receipt is queried before giving up.
	ReceiptPollAttempts uint
	// Contract addresses and chain id. Defaults to Sepolia.
	Network *Network
	// How user operations pay for gas.
	Payment PaymentMode
	// ERC-20 token used with PaymentERC20.
	PaymentToken common.Address
	// The verifying paymaster address, used by PaymentVerifying.
	PaymasterAddress *common.Address
	// The account verifying Paymaster requests.
	VerifyingSigner *ecdsa.PrivateKey
	// Accounts submitting handleOps directly to the EntryPoint.
	Executors Rotator[*ecdsa.PrivateKey]
	// Optional. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewUserOp returns a user operation whose gas fields are left for estimation.
func NewUserOp(sender common.Address, calldata []byte, saltNonce *big.Int) *UserOperation {
	return &UserOperation{
		Sender:    sender,
		CallData:  calldata,
		SaltNonce: saltNonce,
	}
}

func NewUserOpWithDefault(sender common.Address, calldata []byte, saltNonce *big.Int) *UserOperation {
	return &UserOperation{
		Sender:               sender,
		CallData:             calldata,
		CallGasLimit:         big.NewInt(DefaultCallGasLimit),
		VerificationGasLimit: big.NewInt(DefaultVerificationGasLimit),
		PreVerificationGas:   big.NewInt(DefaultPreVerificationGas),
		MaxFeePerGas:         big.NewInt(DefaultMaxFeePerGas),
		MaxPriorityFeePerGas: big.NewInt(DefaultMaxPriorityFeePerGas),
		SaltNonce:            saltNonce,
	}
}

// UserOperation represents the base structure for operations by ERC-4337
// Supported EntryPoint V0.7.0
type UserOperation struct {
	Sender                        common.Address `json:"sender"`
	Nonce                         *big.Int       `json:"nonce"`
	CallData                      []byte         `json:"callData"`
	CallGasLimit                  *big.Int       `json:"callGasLimit"`
	VerificationGasLimit          *big.Int       `json:"verificationGasLimit"`
	PreVerificationGas            *big.Int       `json:"preVerificationGas"`
	MaxFeePerGas                  *big.Int       `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *big.Int       `json:"maxPriorityFeePerGas"`
	Signature                     []byte         `json:"signature"`
	Paymaster                     common.Address `json:"paymaster"`
	PaymasterData                 []byte         `json:"paymasterData"`
	PaymasterVerificationGasLimit *big.Int       `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *big.Int       `json:"paymasterPostOpGasLimit"`
	Factory                       common.Address `json:"factory"`
	FactoryData                   []byte         `json:"factoryData"`
	// Salt nonce of the Safe deployment. Only used while the Safe is not deployed.
	SaltNonce *big.Int `json:"-"`
	// Validity window of the owner signature, unix seconds. Zero ValidUntil means no expiry.
	ValidAfter uint64 `json:"-"`
	ValidUntil uint64 `json:"-"`
}

// InitCode returns factory || factoryData, or nil when there is no factory.
func (u *UserOperation) InitCode() []byte {
	if u.Factory == (common.Address{}) {
		return nil
	}
	return append(u.Factory.Bytes(), u.FactoryData...)
}

// ToBody converts the UserOperation to a map of strings.
// It helps to perform json request.
func (u *UserOperation) ToBody() map[string]string {
	body := make(map[string]string)
	if u.Sender != (common.Address{}) {
		body["sender"] = u.Sender.Hex()
	}
	if u.Nonce != nil {
		body["nonce"] = hexutil.EncodeBig(u.Nonce)
	}
	// callData is mandatory even when empty
	body["callData"] = "0x" + hex.EncodeToString(u.CallData)
	if u.CallGasLimit != nil {
		body["callGasLimit"] = hexutil.EncodeBig(u.CallGasLimit)
	}
	if u.VerificationGasLimit != nil {
		body["verificationGasLimit"] = hexutil.EncodeBig(u.VerificationGasLimit)
	}
	if u.PreVerificationGas != nil {
		body["preVerificationGas"] = hexutil.EncodeBig(u.PreVerificationGas)
	}
	if u.MaxFeePerGas != nil {
		body["maxFeePerGas"] = hexutil.EncodeBig(u.MaxFeePerGas)
	}
	if u.MaxPriorityFeePerGas != nil {
		body["maxPriorityFeePerGas"] = hexutil.EncodeBig(u.MaxPriorityFeePerGas)
	}
	body["signature"] = "0x" + hex.EncodeToString(u.Signature)
	if u.Paymaster != (common.Address{}) {
		body["paymaster"] = u.Paymaster.Hex()
		body["paymasterData"] = "0x" + hex.EncodeToString(u.PaymasterData)
		if u.PaymasterVerificationGasLimit != nil {
			body["paymasterVerificationGasLimit"] = hexutil.EncodeBig(u.PaymasterVerificationGasLimit)
		}
		if u.PaymasterPostOpGasLimit != nil {
			body["paymasterPostOpGasLimit"] = hexutil.EncodeBig(u.PaymasterPostOpGasLimit)
		}
	}
	if u.Factory != (common.Address{}) {
		body["factory"] = u.Factory.Hex()
		body["factoryData"] = "0x" + hex.EncodeToString(u.FactoryData)
	}
	return body
}

// UserOperationFromBody is the inverse of ToBody.
func UserOperationFromBody(body map[string]string) (*UserOperation, error) {
	u := &UserOperation{}
	if v, ok := body["sender"]; ok {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%w: sender %q", ErrInvalidAddress, v)
		}
		u.Sender = common.HexToAddress(v)
	}
	if v, ok := body["paymaster"]; ok && v != "" {
		u.Paymaster = common.HexToAddress(v)
	}
	if v, ok := body["factory"]; ok && v != "" {
		u.Factory = common.HexToAddress(v)
	}

	ints := map[string]**big.Int{
		"nonce":                         &u.Nonce,
		"callGasLimit":                  &u.CallGasLimit,
		"verificationGasLimit":          &u.VerificationGasLimit,
		"preVerificationGas":            &u.PreVerificationGas,
		"maxFeePerGas":                  &u.MaxFeePerGas,
		"maxPriorityFeePerGas":          &u.MaxPriorityFeePerGas,
		"paymasterVerificationGasLimit": &u.PaymasterVerificationGasLimit,
		"paymasterPostOpGasLimit":       &u.PaymasterPostOpGasLimit,
	}
	for key, dst := range ints {
		if v, ok := body[key]; ok && v != "" {
			n, err := ParseHexBig(v)
			if err != nil {
				return nil, fmt.Errorf("error decoding %s: %w", key, err)
			}
			*dst = n
		}
	}

	blobs := map[string]*[]byte{
		"callData":      &u.CallData,
		"signature":     &u.Signature,
		"paymasterData": &u.PaymasterData,
		"factoryData":   &u.FactoryData,
	}
	for key, dst := range blobs {
		if v, ok := body[key]; ok && v != "" {
			b, err := hexutil.Decode(v)
			if err != nil {
				return nil, fmt.Errorf("error decoding %s: %w", key, err)
			}
			*dst = b
		}
	}
	return u, nil
}

// Call is a single call executed by the Safe.
type Call struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation uint8 // OperationCall or OperationDelegateCall
}

type receipt struct {
	BlockHash         common.Hash    `json:"blockHash"`
	BlockNumber       string         `json:"blockNumber"`
	From              common.Address `json:"from"`
	CumulativeGasUsed string         `json:"cumulativeGasUsed"`
	GasUsed           string         `json:"gasUsed"`
	Logs              []*types.Log   `json:"logs"`
	LogsBloom         types.Bloom    `json:"logsBloom"`
	TransactionHash   common.Hash    `json:"transactionHash"`
	TransactionIndex  string         `json:"transactionIndex"`
	EffectiveGasPrice string         `json:"effectiveGasPrice"`
}

type UserOpReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	EntryPoint    common.Address `json:"entryPoint"`
	Sender        common.Address `json:"sender"`
	Paymaster     common.Address `json:"paymaster"`
	Nonce         string         `json:"nonce"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason"`
	ActualGasCost string         `json:"actualGasCost"`
	ActualGasUsed string         `json:"actualGasUsed"`
	Receipt       *receipt       `json:"receipt"`
	Logs          []*types.Log   `json:"logs"`
}

// TransactionHash returns the hash of the bundle transaction, or the zero hash.
func (r *UserOpReceipt) TransactionHash() common.Hash {
	if r.Receipt == nil {
		return common.Hash{}
	}
	return r.Receipt.TransactionHash
}

// UserOpByHash is the result of eth_getUserOperationByHash.
type UserOpByHash struct {
	UserOperation   *UserOperation
	EntryPoint      common.Address
	TransactionHash common.Hash
	BlockHash       common.Hash
	BlockNumber     *big.Int
}

// GasEstimates provides estimate values for all gas fields in a UserOperation.
type GasEstimates struct {
	PreVerificationGas            *big.Int `json:"preVerificationGas"`
	VerificationGasLimit          *big.Int `json:"verificationGasLimit"`
	CallGasLimit                  *big.Int `json:"callGasLimit"`
	PaymasterVerificationGasLimit *big.Int `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *big.Int `json:"paymasterPostOpGasLimit"`
}

type BaseAccount interface {
	// GetAccount gets the Safe address for the given owner.
	GetAccount(ctx context.Context, owner common.Address, saltNonce *big.Int) (common.Address, error)
}

type Bundler interface {
	// SendUserOp fills, signs and sends the user operation to the bundler.
	SendUserOp(ctx context.Context, userOp *UserOperation, signer *ecdsa.PrivateKey) (common.Hash, error)

	// EstimateUserOpGas estimates the gas needed for the user operation.
	EstimateUserOpGas(ctx context.Context, userOp *UserOperation) (*GasEstimates, error)

	// GetUserOpReceipt returns the receipt of the user operation.
	GetUserOpReceipt(ctx context.Context, userOpHash common.Hash) (*UserOpReceipt, error)

	// GetUserOpByHash returns the user operation and where it was included.
	GetUserOpByHash(ctx context.Context, userOpHash common.Hash) (*UserOpByHash, error)

	// SupportedEntryPoints returns the supported entry points for the bundler.
	SupportedEntryPoints(ctx context.Context) ([]common.Address, error)
}
