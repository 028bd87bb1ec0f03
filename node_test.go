package safe4337

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// fakeNode serves the eth namespace of a node and of a bundler from one
// in-process rpc server.
type fakeNode struct {
	chainId *big.Int
	block   uint64
	baseFee *big.Int

	mu       sync.RWMutex
	codes    map[common.Address][]byte
	balances map[common.Address]*big.Int
	results  map[string][]byte
	callHits map[string]int

	entryPoints  []common.Address
	tip          *big.Int
	estimates    map[string]string
	sendErr      error
	lastSent     map[string]string
	receipt      json.RawMessage
	receiptAfter int32
	receiptPolls atomic.Int32

	sponsorship map[string]string
	pmContext   map[string]string

	nonces   map[common.Address]uint64
	txs      map[common.Hash]*types.Transaction
	txFrom   []common.Address
	receipts map[common.Hash]*types.Receipt
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		chainId:  big.NewInt(11155111),
		block:    123,
		baseFee:  big.NewInt(3e9),
		codes:    make(map[common.Address][]byte),
		balances: make(map[common.Address]*big.Int),
		results:  make(map[string][]byte),
		callHits: make(map[string]int),
		tip:      big.NewInt(1e9),
		nonces:   make(map[common.Address]uint64),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		estimates: map[string]string{
			"preVerificationGas":   "0xc350",
			"verificationGasLimit": "0x61a80",
			"callGasLimit":         "0x186a0",
		},
	}
}

// rpcError lets tests choose the JSON-RPC error code.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type callArgs struct {
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + hexutil.Encode(selector)
}

// setCall makes eth_call of method on to return the ABI encoded values.
func (f *fakeNode) setCall(t *testing.T, to common.Address, meta *bind.MetaData, method string, values ...any) {
	t.Helper()
	parsed, err := meta.GetAbi()
	require.NoError(t, err)
	m, ok := parsed.Methods[method]
	require.True(t, ok, method)
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[callKey(to, m.ID)] = out
}

func (f *fakeNode) hits(t *testing.T, to common.Address, meta *bind.MetaData, method string) int {
	t.Helper()
	parsed, err := meta.GetAbi()
	require.NoError(t, err)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.callHits[callKey(to, parsed.Methods[method].ID)]
}

func (f *fakeNode) setCode(addr common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[addr] = code
}

func (f *fakeNode) setBalance(addr common.Address, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = balance
}

func (f *fakeNode) ChainId() *hexutil.Big {
	return (*hexutil.Big)(f.chainId)
}

func (f *fakeNode) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(f.block)
}

func (f *fakeNode) GetCode(addr common.Address, block string) hexutil.Bytes {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.codes[addr]
}

func (f *fakeNode) GetBalance(addr common.Address, block string) *hexutil.Big {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if b, ok := f.balances[addr]; ok {
		return (*hexutil.Big)(b)
	}
	return (*hexutil.Big)(new(big.Int))
}

func (f *fakeNode) Call(args callArgs, block string) (hexutil.Bytes, error) {
	data := args.Input
	if len(data) == 0 {
		data = args.Data
	}
	if args.To == nil || len(data) < 4 {
		return nil, errors.New("execution reverted")
	}
	key := callKey(*args.To, data[:4])

	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.results[key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	f.callHits[key]++
	return out, nil
}

// GetBlockByNumber answers every block tag with the same London header.
func (f *fakeNode) GetBlockByNumber(tag string, full bool) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(f.block),
		Difficulty: new(big.Int),
		BaseFee:    f.baseFee,
	}
}

func (f *fakeNode) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return hexutil.Uint64(f.nonces[addr])
}

func (f *fakeNode) EstimateGas(args callArgs, block *string) hexutil.Uint64 {
	return 300000
}

// SendRawTransaction accepts any correctly signed transaction.
func (f *fakeNode) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.chainId), tx)
	if err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.Nonce() != f.nonces[from] {
		return common.Hash{}, errors.New("nonce too low")
	}
	f.nonces[from]++
	f.txs[tx.Hash()] = tx
	f.txFrom = append(f.txFrom, from)
	return tx.Hash(), nil
}

func (f *fakeNode) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.receipts[hash]
}

func (f *fakeNode) transaction(hash common.Hash) *types.Transaction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.txs[hash]
}

// senders lists the signer of every accepted transaction in order.
func (f *fakeNode) senders() []common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]common.Address(nil), f.txFrom...)
}

func (f *fakeNode) setReceipt(receipt *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[receipt.TxHash] = receipt
}

func (f *fakeNode) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(f.tip)
}

func (f *fakeNode) SupportedEntryPoints() []common.Address {
	return f.entryPoints
}

func (f *fakeNode) EstimateUserOperationGas(op map[string]string, entryPoint common.Address) map[string]string {
	return f.estimates
}

func (f *fakeNode) SendUserOperation(op map[string]string, entryPoint common.Address) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	userOp, err := UserOperationFromBody(op)
	if err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	f.lastSent = op
	f.mu.Unlock()
	packed := PackUserOperation(userOp)
	return GetUserOpHash(&packed, entryPoint, f.chainId)
}

// GetUserOperationReceipt answers null until receiptAfter polls went by.
func (f *fakeNode) GetUserOperationReceipt(hash common.Hash) json.RawMessage {
	if f.receiptPolls.Add(1) <= f.receiptAfter || f.receipt == nil {
		return nil
	}
	return f.receipt
}

func (f *fakeNode) sent(field string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastSent[field]
}

// fakePaymaster serves the pm namespace.
type fakePaymaster struct {
	node *fakeNode
}

func (p *fakePaymaster) SponsorUserOperation(op map[string]string, entryPoint common.Address, pmContext map[string]string) (map[string]string, error) {
	if p.node.sponsorship == nil {
		return nil, &rpcError{code: -32602, msg: "token not supported"}
	}
	p.node.mu.Lock()
	p.node.pmContext = pmContext
	p.node.mu.Unlock()
	return p.node.sponsorship, nil
}

func (f *fakeNode) context(field string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pmContext[field]
}

// serve starts the fake behind an HTTP server and returns its URL.
func (f *fakeNode) serve(t *testing.T) string {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", f))
	require.NoError(t, server.RegisterName("pm", &fakePaymaster{node: f}))
	srv := httptest.NewServer(server)
	t.Cleanup(func() {
		srv.Close()
		server.Stop()
	})
	return srv.URL
}

// newTestClient connects a Client on the Sepolia contract set to the fake.
func newTestClient(t *testing.T, node *fakeNode, payment PaymentMode) *Client {
	t.Helper()
	cache, err := NewLRUCache(16)
	require.NoError(t, err)
	return newConfiguredClient(t, node.serve(t), cache, func(config *Config) {
		config.Payment = payment
	})
}

// newConfiguredClient lets configure adjust the test configuration.
func newConfiguredClient(t *testing.T, url string, cache LRUCache, configure func(*Config)) *Client {
	t.Helper()
	config := &Config{
		NodeUrl:             url,
		BundlerUrl:          url,
		PaymasterUrl:        url,
		PaymentToken:        Sepolia().TestToken,
		Network:             Sepolia(),
		Payment:             PaymentNative,
		WaitReceiptInterval: 5 * time.Millisecond,
		ReceiptPollAttempts: 3,
	}
	configure(config)
	client, err := NewClient(config, cache)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}
