package safe4337

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type Rotator[T any] interface {
	// Next returns the next available signer.
	Next() T

	// Add adds a new signer to the rotation.
	Add(signer T) error

	// Count returns the number of signers available.
	Count() int
}

// RoundRobinSignerProvider hands out executor keys in turn so that
// consecutive handleOps transactions do not queue behind one account nonce.
type RoundRobinSignerProvider struct {
	mu      sync.Mutex
	signers []*ecdsa.PrivateKey
	seen    map[common.Address]struct{}
	index   int
}

var _ Rotator[*ecdsa.PrivateKey] = (*RoundRobinSignerProvider)(nil)

func NewRoundRobinSignerProvider(signers []*ecdsa.PrivateKey) *RoundRobinSignerProvider {
	p := &RoundRobinSignerProvider{seen: make(map[common.Address]struct{})}
	for _, s := range signers {
		_ = p.add(s)
	}
	return p
}

func (p *RoundRobinSignerProvider) Next() *ecdsa.PrivateKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.signers) == 0 {
		return nil
	}
	current := p.signers[p.index%len(p.signers)]
	p.index = (p.index + 1) % len(p.signers)
	return current
}

// Add appends signer to the rotation. A key already in the rotation is rejected.
func (p *RoundRobinSignerProvider) Add(signer *ecdsa.PrivateKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(signer)
}

func (p *RoundRobinSignerProvider) add(signer *ecdsa.PrivateKey) error {
	if signer == nil {
		return errors.New("nil signer")
	}
	addr := crypto.PubkeyToAddress(signer.PublicKey)
	if _, ok := p.seen[addr]; ok {
		return fmt.Errorf("signer %s already in rotation", addr.Hex())
	}
	p.seen[addr] = struct{}{}
	p.signers = append(p.signers, signer)
	return nil
}

func (p *RoundRobinSignerProvider) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signers)
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// ParseSignerKeys decodes a comma separated list of hex private keys.
func ParseSignerKeys(list string) ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey
	for i, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, err := ParsePrivateKey(part)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
