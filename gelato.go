package safe4337

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultGelatoUrl is the public Gelato API.
const DefaultGelatoUrl = "https://api.gelato.digital"

// GelatoBundlerUrl returns the bundler endpoint of chainId. A sponsored endpoint
// charges the API key's balance and expects zero gas fees.
func GelatoBundlerUrl(base string, chainId uint64, apiKey string, sponsored bool) string {
	q := url.Values{}
	q.Set("apiKey", apiKey)
	if sponsored {
		q.Set("sponsored", "true")
	}
	return fmt.Sprintf("%s/bundlers/%d/rpc?%s", gelatoBase(base), chainId, q.Encode())
}

// GelatoPaymasterUrl returns the paymaster endpoint of chainId.
func GelatoPaymasterUrl(base string, chainId uint64, apiKey string) string {
	q := url.Values{}
	q.Set("apiKey", apiKey)
	return fmt.Sprintf("%s/paymasters/%d/rpc?%s", gelatoBase(base), chainId, q.Encode())
}

func gelatoBase(base string) string {
	if base == "" {
		return DefaultGelatoUrl
	}
	return strings.TrimRight(base, "/")
}

// Gelato task states.
const (
	TaskCheckPending           = "CheckPending"
	TaskExecPending            = "ExecPending"
	TaskWaitingForConfirmation = "WaitingForConfirmation"
	TaskExecSuccess            = "ExecSuccess"
	TaskExecReverted           = "ExecReverted"
	TaskCancelled              = "Cancelled"
)

// TaskStatus is the state of a Gelato relay task.
type TaskStatus struct {
	ChainID          uint64 `json:"chainId"`
	TaskID           string `json:"taskId"`
	TaskState        string `json:"taskState"`
	CreationDate     string `json:"creationDate"`
	ExecutionDate    string `json:"executionDate"`
	TransactionHash  string `json:"transactionHash"`
	BlockNumber      uint64 `json:"blockNumber"`
	LastCheckMessage string `json:"lastCheckMessage"`
}

// Final reports whether the task will not change state anymore.
func (t *TaskStatus) Final() bool {
	switch t.TaskState {
	case TaskExecSuccess, TaskExecReverted, TaskCancelled:
		return true
	}
	return false
}

var errTaskPending = errors.New("task pending")

// GelatoRelay reads task states from the Gelato API.
type GelatoRelay struct {
	base     string
	http     *retryablehttp.Client
	logger   *slog.Logger
	Interval time.Duration
	Attempts uint
}

func NewGelatoRelay(base string, logger *slog.Logger) *GelatoRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &GelatoRelay{
		base:     gelatoBase(base),
		http:     newHTTPClient(logger),
		logger:   logger,
		Interval: DefaultWaitReceiptInterval,
		Attempts: DefaultReceiptPollAttempts,
	}
}

// TaskStatus fetches the current state of taskId.
func (g *GelatoRelay) TaskStatus(ctx context.Context, taskId string) (*TaskStatus, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.base+"/tasks/status/"+url.PathEscape(taskId), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	res, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gelato task %s: unexpected status %d: %s", taskId, res.StatusCode, truncate(body, 200))
	}
	var response struct {
		Task *TaskStatus `json:"task"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error unmarshalling task status: %w", err)
	}
	if response.Task == nil {
		return nil, fmt.Errorf("gelato task %s not found", taskId)
	}
	return response.Task, nil
}

// WaitForTask polls until the task reaches a final state or attempts run out.
// The last status seen is returned along with the error.
func (g *GelatoRelay) WaitForTask(ctx context.Context, taskId string) (*TaskStatus, error) {
	var last *TaskStatus
	err := retry.Do(
		func() error {
			status, err := g.TaskStatus(ctx, taskId)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			last = status
			if !status.Final() {
				return errTaskPending
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.Attempts),
		retry.Delay(g.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("waiting for gelato task", "taskId", taskId, "attempt", n+1)
		}),
	)
	if errors.Is(err, errTaskPending) {
		state := ""
		if last != nil {
			state = last.TaskState
		}
		return last, fmt.Errorf("gelato task %s still %s after %d attempts", taskId, state, g.Attempts)
	}
	if err != nil {
		return last, err
	}
	return last, nil
}
