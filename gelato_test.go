package safe4337

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGelatoUrls(t *testing.T) {
	require.Equal(t,
		"https://api.gelato.digital/bundlers/11155111/rpc?apiKey=key",
		GelatoBundlerUrl("", 11155111, "key", false))
	require.Equal(t,
		"https://example.org/bundlers/1/rpc?apiKey=key&sponsored=true",
		GelatoBundlerUrl("https://example.org/", 1, "key", true))
	require.Equal(t,
		"https://api.gelato.digital/paymasters/11155111/rpc?apiKey=a%26b",
		GelatoPaymasterUrl(DefaultGelatoUrl, 11155111, "a&b"))
}

func gelatoServer(t *testing.T, states ...string) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/status/task-1" {
			http.NotFound(w, r)
			return
		}
		n := int(calls.Add(1)) - 1
		if n >= len(states) {
			n = len(states) - 1
		}
		fmt.Fprintf(w, `{"task":{"chainId":11155111,"taskId":"task-1","taskState":%q,"transactionHash":"0xabc","blockNumber":7}}`, states[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGelatoTaskStatus(t *testing.T) {
	srv, _ := gelatoServer(t, TaskExecSuccess)
	relay := NewGelatoRelay(srv.URL, nil)

	status, err := relay.TaskStatus(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, uint64(11155111), status.ChainID)
	require.Equal(t, TaskExecSuccess, status.TaskState)
	require.Equal(t, uint64(7), status.BlockNumber)
	require.True(t, status.Final())

	_, err = relay.TaskStatus(context.Background(), "unknown")
	require.ErrorContains(t, err, "unexpected status 404")
}

func TestGelatoWaitForTask(t *testing.T) {
	srv, calls := gelatoServer(t, TaskCheckPending, TaskExecPending, TaskExecSuccess)
	relay := NewGelatoRelay(srv.URL, nil)
	relay.Interval = 10 * time.Millisecond

	status, err := relay.WaitForTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, TaskExecSuccess, status.TaskState)
	require.Equal(t, int32(3), calls.Load())
}

func TestGelatoWaitForTaskGivesUp(t *testing.T) {
	srv, calls := gelatoServer(t, TaskWaitingForConfirmation)
	relay := NewGelatoRelay(srv.URL, nil)
	relay.Interval = 10 * time.Millisecond
	relay.Attempts = 2

	status, err := relay.WaitForTask(context.Background(), "task-1")
	require.ErrorContains(t, err, "still WaitingForConfirmation after 2 attempts")
	require.Equal(t, TaskWaitingForConfirmation, status.TaskState)
	require.Equal(t, int32(2), calls.Load())
}
