package safe4337

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// LRUCache caches predicted Safe addresses and the factory's proxy creation code.
// The implementation should be thread-safe.
type LRUCache interface {
	// Get retrieves the value from the cache.
	Get(key string) (any, bool)

	// Set stores the value in the cache.
	// Returns true if an eviction occurred.
	Set(key string, value any) bool

	// Len returns the number of cached entries.
	Len() int
}

type lruCache struct {
	inner *lru.Cache
}

var _ LRUCache = &lruCache{}

// NewLRUCache creates a cache holding at most maxSize entries.
func NewLRUCache(maxSize int) (LRUCache, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w, maxSize: %d", err, maxSize)
	}
	return &lruCache{inner: cache}, nil
}

// Get implements LRUCache.
func (l *lruCache) Get(key string) (any, bool) {
	return l.inner.Get(key)
}

// Set implements LRUCache.
func (l *lruCache) Set(key string, value any) bool {
	return l.inner.Add(key, value)
}

// Len implements LRUCache.
func (l *lruCache) Len() int {
	return l.inner.Len()
}

// safeAddressKey identifies a Safe prediction. The contract set is part of the
// key so one cache can be shared between networks.
func safeAddressKey(n *Network, owner common.Address, saltNonce *big.Int) string {
	return fmt.Sprintf("safe-%d-%s-%s-%s-%s-%s-%s",
		n.ChainID, n.SafeFactory.Hex(), n.SafeSingleton.Hex(), n.Safe4337Module.Hex(), n.SafeModuleSetup.Hex(),
		owner.Hex(), saltNonce.String())
}
