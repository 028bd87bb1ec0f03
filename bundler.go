package safe4337

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	jsonrpcVersion = "2.0"
	// HTTP level retries for a single JSON-RPC request.
	defaultHTTPRetryMax = 3
)

func (c *Client) GetUserOpReceipt(ctx context.Context, hash common.Hash) (*UserOpReceipt, error) {
	var result *UserOpReceipt
	if err := c.call(ctx, "eth_getUserOperationReceipt", []any{hash}, &result); err != nil {
		return nil, fmt.Errorf("error calling eth_getUserOperationReceipt: %w", err)
	}
	return result, nil
}

func (c *Client) GetUserOpByHash(ctx context.Context, hash common.Hash) (*UserOpByHash, error) {
	type byHash struct {
		UserOperation   map[string]string `json:"userOperation"`
		EntryPoint      common.Address    `json:"entryPoint"`
		TransactionHash common.Hash       `json:"transactionHash"`
		BlockHash       common.Hash       `json:"blockHash"`
		BlockNumber     string            `json:"blockNumber"`
	}
	var result *byHash
	if err := c.call(ctx, "eth_getUserOperationByHash", []any{hash}, &result); err != nil {
		return nil, fmt.Errorf("error calling eth_getUserOperationByHash: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	op, err := UserOperationFromBody(result.UserOperation)
	if err != nil {
		return nil, fmt.Errorf("error decoding user operation: %w", err)
	}
	out := &UserOpByHash{
		UserOperation:   op,
		EntryPoint:      result.EntryPoint,
		TransactionHash: result.TransactionHash,
		BlockHash:       result.BlockHash,
	}
	if result.BlockNumber != "" {
		out.BlockNumber = HexToBigInt(result.BlockNumber)
	}
	return out, nil
}

func (c *Client) EstimateUserOpGas(ctx context.Context, userOp *UserOperation) (*GasEstimates, error) {
	type gasEstimates struct {
		PreVerificationGas            *string `json:"preVerificationGas"`
		VerificationGasLimit          *string `json:"verificationGasLimit"`
		CallGasLimit                  *string `json:"callGasLimit"`
		PaymasterVerificationGasLimit *string `json:"paymasterVerificationGasLimit"`
		PaymasterPostOpGasLimit       *string `json:"paymasterPostOpGasLimit"`
	}
	var response *gasEstimates
	if err := c.call(ctx, "eth_estimateUserOperationGas", []any{userOp.ToBody(), c.network.EntryPoint}, &response); err != nil {
		return nil, fmt.Errorf("error calling eth_estimateUserOperationGas: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("no gas estimates response")
	}

	result := &GasEstimates{}
	fields := []struct {
		src *string
		dst **big.Int
	}{
		{response.PreVerificationGas, &result.PreVerificationGas},
		{response.VerificationGasLimit, &result.VerificationGasLimit},
		{response.CallGasLimit, &result.CallGasLimit},
		{response.PaymasterVerificationGasLimit, &result.PaymasterVerificationGasLimit},
		{response.PaymasterPostOpGasLimit, &result.PaymasterPostOpGasLimit},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		v, err := ParseHexBig(*f.src)
		if err != nil {
			return nil, fmt.Errorf("error decoding gas estimates: %w", err)
		}
		*f.dst = v
	}
	return result, nil
}

func (c *Client) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := c.call(ctx, "eth_supportedEntryPoints", nil, &result); err != nil {
		return nil, fmt.Errorf("error calling eth_supportedEntryPoints: %w", err)
	}
	return result, nil
}

// BundlerChainId returns the chain id reported by the bundler.
func (c *Client) BundlerChainId(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return nil, fmt.Errorf("error calling eth_chainId: %w", err)
	}
	return ParseHexBig(result)
}

// MaxPriorityFeePerGas returns the tip suggested by the bundler.
func (c *Client) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_maxPriorityFeePerGas", nil, &result); err != nil {
		return nil, fmt.Errorf("error calling eth_maxPriorityFeePerGas: %w", err)
	}
	return ParseHexBig(result)
}

func (c *Client) SendUserOp(ctx context.Context, userOp *UserOperation, signer *ecdsa.PrivateKey) (common.Hash, error) {
	signed, hash, err := c.FillAndSign(ctx, userOp, signer)
	if err != nil {
		return hash, fmt.Errorf("error fill and sign userop: %w", err)
	}
	sent, err := c.SendSignedUserOp(ctx, signed)
	if err != nil {
		return common.Hash{}, err
	}
	if sent != hash {
		c.logger.Debug("bundler returned a different user operation hash", "local", hash, "bundler", sent)
	}
	return sent, nil
}

// SendSignedUserOp submits an already signed user operation as is.
func (c *Client) SendSignedUserOp(ctx context.Context, userOp *UserOperation) (common.Hash, error) {
	var result common.Hash
	if err := c.call(ctx, "eth_sendUserOperation", []any{userOp.ToBody(), c.network.EntryPoint}, &result); err != nil {
		return common.Hash{}, fmt.Errorf("error calling eth_sendUserOperation: %w", err)
	}
	return result, nil
}

func (c *Client) GetUserOpHash(ctx context.Context, userOp *UserOperation, signer *ecdsa.PrivateKey) (common.Hash, error) {
	_, hash, err := c.FillAndSign(ctx, userOp, signer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("error fill and sign userop: %w", err)
	}
	return hash, nil
}

// WaitForUserOperation polls the bundler for the receipt, at most
// ReceiptPollAttempts times, WaitReceiptInterval apart.
func (c *Client) WaitForUserOperation(ctx context.Context, hash common.Hash) (*UserOpReceipt, error) {
	var found *UserOpReceipt
	err := retry.Do(
		func() error {
			receipt, err := c.GetUserOpReceipt(ctx, hash)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if receipt == nil {
				return ErrNoReceipt
			}
			found = receipt
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.config.ReceiptPollAttempts),
		retry.Delay(c.config.WaitReceiptInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("waiting for user operation receipt", "userOpHash", hash, "attempt", n+1)
		}),
	)
	if errors.Is(err, ErrNoReceipt) {
		return nil, fmt.Errorf("%w %s", ErrNoReceipt, hash.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user operation receipt: %w", err)
	}
	return found, nil
}

// call makes a JSON-RPC call to the bundler.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c.config.BundlerUrl == "" {
		return fmt.Errorf("bundler url is not configured")
	}
	return c.callInto(ctx, c.config.BundlerUrl, method, params, out)
}

// callInto posts a JSON-RPC request to url and decodes the result into out.
func (c *Client) callInto(ctx context.Context, url string, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}

	request := map[string]any{
		"jsonrpc": jsonrpcVersion,
		"id":      c.id.Add(1),
		"method":  method,
		"params":  params,
	}
	payloadBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	c.logger.Debug("json-rpc call", "method", method, "status", res.StatusCode, "elapsed", time.Since(start))

	var response jsonRpcResponse[json.RawMessage]
	if err = json.Unmarshal(body, &response); err != nil {
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", res.StatusCode, truncate(body, 200))
		}
		return fmt.Errorf("error unmarshalling response: %w", err)
	}
	if response.Error != nil {
		return response.Error
	}
	if out == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, out); err != nil {
		return fmt.Errorf("error unmarshalling %s result: %w", method, err)
	}
	return nil
}

type jsonRpcResponse[T any] struct {
	JsonRpc *string         `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  T               `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newHTTPClient(logger retryablehttp.LeveledLogger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = defaultHTTPRetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = logger
	client.CheckRetry = checkRetry
	// the last response is handed back so its JSON-RPC error can be decoded
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// checkRetry does not retry a 500: the endpoint answered, usually with a
// JSON-RPC error, and resending eth_sendUserOperation would not change it.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
