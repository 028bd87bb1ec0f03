package safe4337

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Network describes the chain and the contract set the toolkit talks to.
type Network struct {
	Name            string         `yaml:"name"`
	ChainID         uint64         `yaml:"chainId"`
	RpcUrl          string         `yaml:"rpcUrl"`
	ExplorerUrl     string         `yaml:"explorerUrl"`
	GelatoUrl       string         `yaml:"gelatoUrl"`
	EntryPoint      common.Address `yaml:"entryPoint"`
	SafeFactory     common.Address `yaml:"safeFactory"`
	SafeSingleton   common.Address `yaml:"safeSingleton"`
	Safe4337Module  common.Address `yaml:"safe4337Module"`
	SafeModuleSetup common.Address `yaml:"safeModuleSetup"`
	MultiSend       common.Address `yaml:"multiSend"`
	TestToken       common.Address `yaml:"testToken"`
}

// Sepolia returns the default profile.
func Sepolia() *Network {
	return &Network{
		Name:            "sepolia",
		ChainID:         11155111,
		RpcUrl:          "https://rpc.sepolia.org",
		ExplorerUrl:     "https://sepolia.etherscan.io",
		GelatoUrl:       "https://api.gelato.digital",
		EntryPoint:      common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		SafeFactory:     common.HexToAddress("0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67"),
		SafeSingleton:   common.HexToAddress("0x41675C099F32341bf84BFc5382aF534df5C7461a"),
		Safe4337Module:  common.HexToAddress("0x75cf11467937ce3F2f357CE24ffc3DBF8fD5c226"),
		SafeModuleSetup: common.HexToAddress("0x2dd68b007B46fBe91B9A7c3EDa5A7a1063cB5b47"),
		MultiSend:       common.HexToAddress("0x38869bf66a61cF6bDB996A6aE40D5853Fd43B526"),
		TestToken:       common.HexToAddress("0x0566F0CD850220DF2806E3100cc6029144af7041"),
	}
}

// LoadNetwork reads a YAML profile on top of the Sepolia defaults.
// Fields absent from the file keep their default value.
func LoadNetwork(path string) (*Network, error) {
	n := Sepolia()
	if path == "" {
		return n, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading network file: %w", err)
	}
	var override Network
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("error parsing network file %s: %w", path, err)
	}
	n.merge(&override)
	return n, nil
}

func (n *Network) merge(o *Network) {
	if o.Name != "" {
		n.Name = o.Name
	}
	if o.ChainID != 0 {
		n.ChainID = o.ChainID
	}
	if o.RpcUrl != "" {
		n.RpcUrl = o.RpcUrl
	}
	if o.ExplorerUrl != "" {
		n.ExplorerUrl = o.ExplorerUrl
	}
	if o.GelatoUrl != "" {
		n.GelatoUrl = o.GelatoUrl
	}
	addrs := []struct {
		dst *common.Address
		src common.Address
	}{
		{&n.EntryPoint, o.EntryPoint},
		{&n.SafeFactory, o.SafeFactory},
		{&n.SafeSingleton, o.SafeSingleton},
		{&n.Safe4337Module, o.Safe4337Module},
		{&n.SafeModuleSetup, o.SafeModuleSetup},
		{&n.MultiSend, o.MultiSend},
		{&n.TestToken, o.TestToken},
	}
	for _, a := range addrs {
		if a.src != (common.Address{}) {
			*a.dst = a.src
		}
	}
}

// ChainIDBig returns the chain id as a big.Int.
func (n *Network) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

// TxURL links a transaction on the block explorer.
func (n *Network) TxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", n.ExplorerUrl, hash.Hex())
}

// AddressURL links an address on the block explorer.
func (n *Network) AddressURL(addr common.Address) string {
	return fmt.Sprintf("%s/address/%s", n.ExplorerUrl, addr.Hex())
}
