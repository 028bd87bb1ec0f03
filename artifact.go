package safe4337

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Artifact is a compiled contract as written by Foundry or Hardhat.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// ParseArtifact decodes an artifact. The bytecode is either a hex string
// (Hardhat) or an object with an "object" field (Foundry).
func ParseArtifact(name string, raw []byte) (*Artifact, error) {
	var doc struct {
		ContractName string          `json:"contractName"`
		ABI          abi.ABI         `json:"abi"`
		Bytecode     json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("error decoding artifact: %w", err)
	}
	if len(doc.Bytecode) == 0 {
		return nil, errors.New("artifact has no bytecode")
	}

	var code string
	if err := json.Unmarshal(doc.Bytecode, &code); err != nil {
		var foundry struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(doc.Bytecode, &foundry); err != nil {
			return nil, fmt.Errorf("error decoding artifact bytecode: %w", err)
		}
		code = foundry.Object
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("error decoding artifact bytecode: %w", err)
	}
	if len(bytecode) == 0 {
		return nil, errors.New("artifact bytecode is empty")
	}
	if doc.ContractName != "" {
		name = doc.ContractName
	}
	return &Artifact{Name: name, ABI: doc.ABI, Bytecode: bytecode}, nil
}

// LoadArtifact reads an artifact file. The contract name defaults to the file name.
func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading artifact: %w", err)
	}
	return ParseArtifact(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), raw)
}

// ConstructorArgs converts command line values to the constructor's argument types.
// Addresses, strings, booleans and integers are supported.
func (a *Artifact) ConstructorArgs(values []string) ([]any, error) {
	inputs := a.ABI.Constructor.Inputs
	if len(values) != len(inputs) {
		return nil, fmt.Errorf("%s constructor takes %d arguments, got %d", a.Name, len(inputs), len(values))
	}
	args := make([]any, len(values))
	for i, input := range inputs {
		v, err := parseArg(input.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", input.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(t abi.Type, value string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		return common.HexToAddress(value), nil
	case abi.StringTy:
		return value, nil
	case abi.BoolTy:
		return strconv.ParseBool(value)
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(value, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", value)
		}
		if !fitsInt(n, t) {
			return nil, fmt.Errorf("%s out of range for %s", value, t.String())
		}
		// sizes other than 8, 16, 32 and 64 bits are packed from *big.Int
		if t.GetType().Kind() == reflect.Ptr {
			return n, nil
		}
		v := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			v.SetUint(n.Uint64())
		} else {
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", t.String())
}

func fitsInt(n *big.Int, t abi.Type) bool {
	if t.T == abi.UintTy {
		return n.Sign() >= 0 && n.BitLen() <= t.Size
	}
	if n.Sign() >= 0 {
		return n.BitLen() < t.Size
	}
	// -2^(size-1) is the smallest value
	return new(big.Int).Not(n).BitLen() < t.Size
}

// DeployArtifact deploys the artifact from signer and waits for the receipt.
func (c *Client) DeployArtifact(ctx context.Context, signer *ecdsa.PrivateKey, artifact *Artifact, args ...any) (common.Address, *types.Receipt, error) {
	txOpts, err := c.transactor(ctx, signer)
	if err != nil {
		return common.Address{}, nil, err
	}
	addr, tx, _, err := bind.DeployContract(txOpts, artifact.ABI, artifact.Bytecode, c.eth, args...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("error deploying %s: %w", artifact.Name, err)
	}
	c.logger.Debug("contract deployment sent", "name", artifact.Name, "address", addr, "tx", tx.Hash())
	receipt, err := c.waitSuccess(ctx, tx)
	if err != nil {
		return common.Address{}, receipt, err
	}
	return addr, receipt, nil
}
