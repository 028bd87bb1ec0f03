package safe4337

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// File names of the addresses shared between tasks.
const (
	CounterFile = "deployed-counter.txt"
	SafeFile    = "deployed-safe-with-4337.txt"
	TokenFile   = "deployed-token.txt"
)

// AddressBook persists deployed addresses as one-line text files in Dir.
type AddressBook struct {
	Dir string
}

func NewAddressBook(dir string) *AddressBook {
	return &AddressBook{Dir: dir}
}

// Write stores addr under name, creating Dir when needed.
func (b *AddressBook) Write(name string, addr common.Address) error {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating %s: %w", b.Dir, err)
	}
	return os.WriteFile(filepath.Join(b.Dir, name), []byte(addr.Hex()+"\n"), 0o644)
}

// Read loads the address stored under name. A malformed entry fails with ErrInvalidAddress.
func (b *AddressBook) Read(name string) (common.Address, error) {
	raw, err := os.ReadFile(filepath.Join(b.Dir, name))
	if err != nil {
		return common.Address{}, err
	}
	value := strings.TrimSpace(string(raw))
	if !common.IsHexAddress(value) || !strings.HasPrefix(value, "0x") {
		return common.Address{}, fmt.Errorf("%w in %s: %q", ErrInvalidAddress, name, value)
	}
	return common.HexToAddress(value), nil
}

// Deployed is the set of addresses recorded by earlier tasks.
// Missing files leave the matching field zero.
type Deployed struct {
	Counter common.Address
	Safe    common.Address
	Token   common.Address
}

// ReadAll loads every known entry.
func (b *AddressBook) ReadAll() (*Deployed, error) {
	d := &Deployed{}
	entries := []struct {
		name string
		dst  *common.Address
	}{
		{CounterFile, &d.Counter},
		{SafeFile, &d.Safe},
		{TokenFile, &d.Token},
	}
	for _, e := range entries {
		addr, err := b.Read(e.name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*e.dst = addr
	}
	return d, nil
}

// DeploymentRecord documents a Safe deployment.
type DeploymentRecord struct {
	ID              string         `json:"id"`
	SafeAddress     common.Address `json:"safeAddress"`
	Owner           common.Address `json:"owner"`
	ChainID         uint64         `json:"chainId"`
	ChainName       string         `json:"chainName"`
	DeploymentTime  time.Time      `json:"deploymentTime"`
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     uint64         `json:"blockNumber"`
	SafeVersion     string         `json:"safeVersion"`
	Erc4337Module   common.Address `json:"erc4337Module"`
	FallbackHandler common.Address `json:"fallbackHandler"`
	SaltNonce       string         `json:"saltNonce"`
}

// NewDeploymentRecord fills the identifier and the time of the record.
func NewDeploymentRecord(network *Network, safeAddr, owner common.Address, txHash common.Hash, block uint64, saltNonce string) *DeploymentRecord {
	return &DeploymentRecord{
		ID:              uuid.NewString(),
		SafeAddress:     safeAddr,
		Owner:           owner,
		ChainID:         network.ChainID,
		ChainName:       network.Name,
		DeploymentTime:  time.Now().UTC(),
		TransactionHash: txHash,
		BlockNumber:     block,
		SafeVersion:     "1.4.1",
		Erc4337Module:   network.Safe4337Module,
		FallbackHandler: network.Safe4337Module,
		SaltNonce:       saltNonce,
	}
}

// WriteRecord stores rec as indented JSON next to the text entries.
func (b *AddressBook) WriteRecord(name string, rec *DeploymentRecord) error {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating %s: %w", b.Dir, err)
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.Dir, name), append(raw, '\n'), 0o644)
}

// ReadRecord loads a record written by WriteRecord.
func (b *AddressBook) ReadRecord(name string) (*DeploymentRecord, error) {
	raw, err := os.ReadFile(filepath.Join(b.Dir, name))
	if err != nil {
		return nil, err
	}
	var rec DeploymentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", name, err)
	}
	return &rec, nil
}
