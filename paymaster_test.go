package safe4337

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentMode(t *testing.T) {
	for input, want := range map[string]PaymentMode{
		"":          PaymentNative,
		"native":    PaymentNative,
		"Sponsored": PaymentSponsored,
		" erc20 ":   PaymentERC20,
		"verifying": PaymentVerifying,
	} {
		mode, err := ParsePaymentMode(input)
		require.NoError(t, err, input)
		require.Equal(t, want, mode)
	}
	_, err := ParsePaymentMode("free")
	require.Error(t, err)
}

func TestGetPaymasterHash(t *testing.T) {
	packed := PackUserOperation(NewUserOpWithDefault(testSender, nil, nil))
	_, err := GetPaymasterHash(&packed, big.NewInt(1), big.NewInt(0), big.NewInt(0))
	require.True(t, errors.Is(err, ErrPaymasterDataTooShort))

	userOp := NewUserOpWithDefault(testSender, nil, nil)
	userOp.Paymaster = testPaymaster
	packed = PackUserOperation(userOp)
	hash, err := GetPaymasterHash(&packed, big.NewInt(1), big.NewInt(100), big.NewInt(0))
	require.NoError(t, err)

	// paymasterData itself is not covered
	userOp.PaymasterData = []byte{0x01}
	packed = PackUserOperation(userOp)
	again, err := GetPaymasterHash(&packed, big.NewInt(1), big.NewInt(100), big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, hash, again)

	other, err := GetPaymasterHash(&packed, big.NewInt(2), big.NewInt(100), big.NewInt(0))
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}

func TestEncodePaymasterData(t *testing.T) {
	data, err := EncodePaymasterData(big.NewInt(0xffffffffffff), big.NewInt(0), EmptySignature)
	require.NoError(t, err)
	require.Len(t, data, 64+65)
	require.Equal(t, byte(0xff), data[31])
	require.Equal(t, byte(0), data[63])
}

func TestUnpackPaymasterAndDataTooShort(t *testing.T) {
	_, _, _, _, err := UnpackPaymasterAndData(make([]byte, PaymasterDataOffset-1))
	require.ErrorIs(t, err, ErrPaymasterDataTooShort)
}

func TestSponsorResultApply(t *testing.T) {
	t.Run("split fields", func(t *testing.T) {
		var result sponsorResult
		require.NoError(t, json.Unmarshal([]byte(`{
			"paymaster": "0x3333333333333333333333333333333333333333",
			"paymasterData": "0xbeef",
			"paymasterVerificationGasLimit": "0x100",
			"paymasterPostOpGasLimit": "0x10",
			"callGasLimit": "0x1",
			"verificationGasLimit": "0x2",
			"preVerificationGas": "0x3"
		}`), &result))

		userOp := NewUserOp(testSender, nil, nil)
		hasGas, err := result.apply(userOp)
		require.NoError(t, err)
		require.True(t, hasGas)
		require.Equal(t, testPaymaster, userOp.Paymaster)
		require.Equal(t, []byte{0xbe, 0xef}, userOp.PaymasterData)
		require.Equal(t, int64(0x100), userOp.PaymasterVerificationGasLimit.Int64())
		require.Equal(t, int64(0x10), userOp.PaymasterPostOpGasLimit.Int64())
		require.Equal(t, int64(1), userOp.CallGasLimit.Int64())
		require.Equal(t, int64(2), userOp.VerificationGasLimit.Int64())
		require.Equal(t, int64(3), userOp.PreVerificationGas.Int64())
	})

	t.Run("packed field", func(t *testing.T) {
		packed := PackPaymasterAndData(testPaymaster, big.NewInt(7), big.NewInt(8), []byte{0x01})
		raw, err := json.Marshal(map[string]any{"paymasterAndData": hexutil.Encode(packed)})
		require.NoError(t, err)
		var result sponsorResult
		require.NoError(t, json.Unmarshal(raw, &result))

		userOp := NewUserOp(testSender, nil, nil)
		hasGas, err := result.apply(userOp)
		require.NoError(t, err)
		require.False(t, hasGas)
		require.Equal(t, testPaymaster, userOp.Paymaster)
		require.Equal(t, int64(7), userOp.PaymasterVerificationGasLimit.Int64())
		require.Equal(t, int64(8), userOp.PaymasterPostOpGasLimit.Int64())
		require.Equal(t, []byte{0x01}, userOp.PaymasterData)
		require.Nil(t, userOp.CallGasLimit)
	})

	t.Run("empty", func(t *testing.T) {
		var result sponsorResult
		_, err := result.apply(NewUserOp(testSender, nil, nil))
		require.Error(t, err)
	})
}
