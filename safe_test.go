package safe4337

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/safe"
	"github.com/stretchr/testify/require"
)

func TestSafeSetupData(t *testing.T) {
	network := Sepolia()
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	data, err := SafeSetupData(&SafeSetup{
		Owners:      []common.Address{owner},
		Threshold:   1,
		ModuleSetup: network.SafeModuleSetup,
		Module:      network.Safe4337Module,
	})
	require.NoError(t, err)

	safeABI, err := safe.SafeMetaData.GetAbi()
	require.NoError(t, err)
	setup := safeABI.Methods["setup"]
	require.Equal(t, setup.ID, data[:4])

	args, err := setup.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, []common.Address{owner}, args[0])
	require.Equal(t, int64(1), args[1].(*big.Int).Int64())
	require.Equal(t, network.SafeModuleSetup, args[2])
	require.Equal(t, network.Safe4337Module, args[4]) // fallback handler

	moduleSetupABI, err := safe.SafeModuleSetupMetaData.GetAbi()
	require.NoError(t, err)
	enable := moduleSetupABI.Methods["enableModules"]
	delegateData := args[3].([]byte)
	require.Equal(t, enable.ID, delegateData[:4])
	modules, err := enable.Inputs.Unpack(delegateData[4:])
	require.NoError(t, err)
	require.Equal(t, []common.Address{network.Safe4337Module}, modules[0])
}

func TestSafeSetupValidation(t *testing.T) {
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	for name, setup := range map[string]*SafeSetup{
		"no owners":      {Threshold: 1},
		"zero threshold": {Owners: []common.Address{owner}},
		"threshold above owners": {
			Owners:    []common.Address{owner},
			Threshold: 2,
		},
	} {
		_, err := SafeSetupData(setup)
		require.Error(t, err, name)
	}
}

func TestPredictSafeAddress(t *testing.T) {
	network := Sepolia()
	creationCode := []byte{0x60, 0x80, 0x60, 0x40}
	initializer := []byte("initializer")

	addr := PredictSafeAddress(network.SafeFactory, network.SafeSingleton, creationCode, initializer, big.NewInt(5))

	var saltNonce [32]byte
	saltNonce[31] = 5
	salt := crypto.Keccak256Hash(crypto.Keccak256(initializer), saltNonce[:])
	deploymentData := append(append([]byte{}, creationCode...), common.LeftPadBytes(network.SafeSingleton.Bytes(), 32)...)
	require.Equal(t, crypto.CreateAddress2(network.SafeFactory, salt, crypto.Keccak256(deploymentData)), addr)

	require.NotEqual(t, addr, PredictSafeAddress(network.SafeFactory, network.SafeSingleton, creationCode, initializer, big.NewInt(6)))
	require.Equal(t,
		PredictSafeAddress(network.SafeFactory, network.SafeSingleton, creationCode, initializer, nil),
		PredictSafeAddress(network.SafeFactory, network.SafeSingleton, creationCode, initializer, big.NewInt(0)),
	)
}

func TestPackMultiSend(t *testing.T) {
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")
	packed := PackMultiSend([]Call{
		{To: to, Value: big.NewInt(2), Data: []byte{0xa, 0xb, 0xc, 0xd}},
		{To: to, Operation: OperationDelegateCall},
	})
	require.Len(t, packed, (1+20+32+32+4)+(1+20+32+32))

	require.Equal(t, OperationCall, packed[0])
	require.Equal(t, to.Bytes(), packed[1:21])
	require.Equal(t, byte(2), packed[52])
	require.Equal(t, byte(4), packed[84])
	require.Equal(t, []byte{0xa, 0xb, 0xc, 0xd}, packed[85:89])
	require.Equal(t, OperationDelegateCall, packed[89])
}

func TestExecuteBatchData(t *testing.T) {
	network := Sepolia()
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")
	single := Call{To: to, Value: big.NewInt(1)}

	_, err := ExecuteBatchData(network.MultiSend, nil)
	require.Error(t, err)

	data, err := ExecuteBatchData(network.MultiSend, []Call{single})
	require.NoError(t, err)
	direct, err := ExecuteUserOpData(to, big.NewInt(1), nil, OperationCall)
	require.NoError(t, err)
	require.Equal(t, direct, data)

	data, err = ExecuteBatchData(network.MultiSend, []Call{single, single})
	require.NoError(t, err)

	moduleABI, err := safe.Safe4337ModuleMetaData.GetAbi()
	require.NoError(t, err)
	execute := moduleABI.Methods["executeUserOp"]
	require.Equal(t, execute.ID, data[:4])
	args, err := execute.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, network.MultiSend, args[0])
	require.Equal(t, int64(0), args[1].(*big.Int).Int64())
	require.Equal(t, OperationDelegateCall, args[3])

	multiSendABI, err := safe.MultiSendMetaData.GetAbi()
	require.NoError(t, err)
	inner := args[2].([]byte)
	require.Equal(t, multiSendABI.Methods["multiSend"].ID, inner[:4])
}

func TestPackBatchTransferData(t *testing.T) {
	network := Sepolia()
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")

	_, err := PackBatchTransferData(network.MultiSend, []common.Address{to}, nil)
	require.Error(t, err)

	data, err := PackBatchTransferData(network.MultiSend, []common.Address{to, to}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	batch, err := ExecuteBatchData(network.MultiSend, []Call{
		{To: to, Value: big.NewInt(1)},
		{To: to, Value: big.NewInt(2)},
	})
	require.NoError(t, err)
	require.Equal(t, batch, data)
}

func TestContractCalls(t *testing.T) {
	token := common.HexToAddress("0x0566F0CD850220DF2806E3100cc6029144af7041")
	recipient := common.HexToAddress("0x4444444444444444444444444444444444444444")

	transfer, err := ERC20TransferCall(token, recipient, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, token, transfer.To)
	require.Zero(t, transfer.Value.Sign())
	// transfer(address,uint256)
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, transfer.Data[:4])
	require.Len(t, transfer.Data, 4+2*32)
	require.Equal(t, common.LeftPadBytes(recipient.Bytes(), 32), transfer.Data[4:36])

	counterAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	increment, err := IncrementCall(counterAddr)
	require.NoError(t, err)
	require.Equal(t, counterAddr, increment.To)
	require.Equal(t, crypto.Keccak256([]byte("increment()"))[:4], increment.Data)
}
