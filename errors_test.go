package safe4337

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRPCErrorUnmarshal(t *testing.T) {
	var fromObject RPCError
	require.NoError(t, json.Unmarshal([]byte(`{"code":-32602,"message":"invalid params"}`), &fromObject))
	require.Equal(t, -32602, fromObject.Code)
	require.Equal(t, "invalid params", fromObject.Message)
	require.Equal(t, "rpc error -32602: invalid params", fromObject.Error())

	var fromString RPCError
	require.NoError(t, json.Unmarshal([]byte(`"AA21 didn't pay prefund"`), &fromString))
	require.Equal(t, 0, fromString.Code)
	require.Equal(t, "rpc error: AA21 didn't pay prefund", fromString.Error())

	var bad RPCError
	require.Error(t, json.Unmarshal([]byte(`[1]`), &bad))
}
