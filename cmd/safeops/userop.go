package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jedib0t/go-pretty/v6/table"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/lifenetwork-ai/safe4337-kit/bindings/entrypoint"
	"github.com/urfave/cli/v2"
)

var callFlags = []cli.Flag{
	safeAddressFlag,
	&cli.StringFlag{
		Name:  "to",
		Usage: "Call target, or token recipient with --token",
	},
	&cli.StringFlag{
		Name:  "value",
		Usage: "ETH sent with the call, or token amount with --token",
		Value: "0",
	},
	&cli.StringFlag{
		Name:  "data",
		Usage: "Hex calldata of the call",
	},
	&cli.StringFlag{
		Name:  "token",
		Usage: "Transfer --value of this ERC-20 token to --to",
	},
	&cli.BoolFlag{
		Name:  "increment",
		Usage: "Also increment the counter of the address book",
	},
}

var waitFlag = &cli.BoolFlag{
	Name:  "wait",
	Usage: "Wait for the receipt",
	Value: true,
}

var userOpCmd = &cli.Command{
	Name:  "userop",
	Usage: "Build, sign and submit Safe user operations",
	Subcommands: []*cli.Command{
		{
			Name:   "send",
			Usage:  "Send a user operation through the bundler",
			Flags:  append([]cli.Flag{waitFlag}, callFlags...),
			Action: userOpSend,
		},
		{
			Name:   "estimate",
			Usage:  "Fill the user operation and show its gas limits without sending it",
			Flags:  callFlags,
			Action: userOpEstimate,
		},
		{
			Name:   "hash",
			Usage:  "Show the user operation hash and the Safe operation hash",
			Flags:  callFlags,
			Action: userOpHash,
		},
		{
			Name:      "receipt",
			Usage:     "Get the receipt of a user operation",
			ArgsUsage: "<user-op-hash>",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "wait", Usage: "Poll until the receipt is available"}},
			Action:    userOpReceipt,
		},
		{
			Name:      "get",
			Usage:     "Get a user operation by hash",
			ArgsUsage: "<user-op-hash>",
			Action:    userOpGet,
		},
	},
}

var handleOpsCmd = &cli.Command{
	Name:   "handle-ops",
	Usage:  "Submit a user operation to the EntryPoint directly from an executor key",
	Flags:  append([]cli.Flag{waitFlag}, callFlags...),
	Action: handleOps,
}

// buildCalls turns the call flags into the calls executed by the Safe.
func (s *session) buildCalls(c *cli.Context) ([]safe4337.Call, error) {
	var calls []safe4337.Call
	if to := c.String("to"); to != "" {
		target, err := parseAddress("to", to)
		if err != nil {
			return nil, err
		}
		if token := c.String("token"); token != "" {
			tokenAddr, err := parseAddress("token", token)
			if err != nil {
				return nil, err
			}
			_, info, err := s.client.TokenBalance(c.Context, tokenAddr, target)
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(c.String("value"), info.Decimals)
			if err != nil {
				return nil, err
			}
			call, err := safe4337.ERC20TransferCall(tokenAddr, target, amount)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		} else {
			value, err := parseAmount(c.String("value"), 18)
			if err != nil {
				return nil, err
			}
			var data []byte
			if raw := c.String("data"); raw != "" {
				if data, err = hexutil.Decode(raw); err != nil {
					return nil, usageError("invalid data: %v", err)
				}
			}
			calls = append(calls, safe4337.Call{To: target, Value: value, Data: data})
		}
	}
	if c.Bool("increment") {
		counterAddr, err := s.book.Read(safe4337.CounterFile)
		if err != nil {
			return nil, usageError("no counter in the address book: %v", err)
		}
		call, err := safe4337.IncrementCall(counterAddr)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return nil, usageError("nothing to execute: give --to or --increment")
	}
	return calls, nil
}

// buildUserOp prepares an unsigned user operation of the signer's Safe.
func (s *session) buildUserOp(c *cli.Context) (*safe4337.UserOperation, error) {
	calls, err := s.buildCalls(c)
	if err != nil {
		return nil, err
	}
	callData, err := safe4337.ExecuteBatchData(s.network.MultiSend, calls)
	if err != nil {
		return nil, err
	}
	salt, err := s.saltNonce(c)
	if err != nil {
		return nil, err
	}
	sender, err := s.safeAddress(c)
	if err != nil {
		return nil, err
	}
	return safe4337.NewUserOp(sender, callData, salt), nil
}

func userOpSend(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	userOp, err := s.buildUserOp(c)
	if err != nil {
		return err
	}
	s.logger.Info("Sending user operation", "sender", userOp.Sender, "payment", s.payment)
	hash, err := s.client.SendUserOp(c.Context, userOp, s.signer())
	if err != nil {
		return err
	}
	printf(c, "User operation %s\n", hash.Hex())
	if !c.Bool("wait") {
		return nil
	}
	receipt, err := s.client.WaitForUserOperation(c.Context, hash)
	if err != nil {
		return err
	}
	return printReceipt(c, s, receipt)
}

func userOpEstimate(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	userOp, err := s.buildUserOp(c)
	if err != nil {
		return err
	}
	signed, _, err := s.client.FillAndSign(c.Context, userOp, s.signer())
	if err != nil {
		return err
	}
	t := newTable(c, "Field", "Value")
	t.AppendRows([]table.Row{
		{"sender", signed.Sender.Hex()},
		{"nonce", signed.Nonce},
		{"deploys safe", yesNo(signed.Factory != (common.Address{}))},
		{"callGasLimit", signed.CallGasLimit},
		{"verificationGasLimit", signed.VerificationGasLimit},
		{"preVerificationGas", signed.PreVerificationGas},
		{"maxFeePerGas", safe4337.FormatUnits(signed.MaxFeePerGas, 9) + " gwei"},
		{"maxPriorityFeePerGas", safe4337.FormatUnits(signed.MaxPriorityFeePerGas, 9) + " gwei"},
	})
	if signed.Paymaster != (common.Address{}) {
		t.AppendRows([]table.Row{
			{"paymaster", signed.Paymaster.Hex()},
			{"paymasterVerificationGasLimit", signed.PaymasterVerificationGasLimit},
			{"paymasterPostOpGasLimit", signed.PaymasterPostOpGasLimit},
		})
	}
	t.AppendRow(table.Row{"max cost", safe4337.FormatEther(maxCost(signed)) + " ETH"})
	t.Render()
	return nil
}

// maxCost is the most the operation can be charged: all gas limits at maxFeePerGas.
func maxCost(u *safe4337.UserOperation) *big.Int {
	gas := new(big.Int)
	for _, g := range []*big.Int{u.CallGasLimit, u.VerificationGasLimit, u.PreVerificationGas, u.PaymasterVerificationGasLimit, u.PaymasterPostOpGasLimit} {
		if g != nil {
			gas.Add(gas, g)
		}
	}
	if u.MaxFeePerGas == nil {
		return new(big.Int)
	}
	return gas.Mul(gas, u.MaxFeePerGas)
}

func userOpHash(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	userOp, err := s.buildUserOp(c)
	if err != nil {
		return err
	}
	signed, hash, err := s.client.FillAndSign(c.Context, userOp, s.signer())
	if err != nil {
		return err
	}
	safeOpHash, err := s.client.SafeOpHash(signed)
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"User operation hash", hash.Hex()},
		{"Safe operation hash", safeOpHash.Hex()},
	})
	var mismatch error
	if onChain, err := s.client.UserOpHashOnChain(c.Context, signed); err != nil {
		s.logger.Warn("entry point hash unavailable", "error", err)
	} else {
		t.AppendRow(table.Row{"EntryPoint getUserOpHash", onChain.Hex()})
		t.AppendRow(table.Row{"Matches", yesNo(onChain == hash)})
		if onChain != hash {
			mismatch = errors.New("user operation hash differs from the entry point's")
		}
	}
	if onChain, err := s.client.OperationHashOnChain(c.Context, signed); err != nil {
		s.logger.Warn("module hash unavailable", "error", err)
	} else {
		t.AppendRow(table.Row{"Module getOperationHash", onChain.Hex()})
		t.AppendRow(table.Row{"Matches", yesNo(onChain == safeOpHash)})
		if onChain != safeOpHash {
			mismatch = errors.New("safe operation hash differs from the module's")
		}
	}
	t.Render()
	return mismatch
}

func hashArg(c *cli.Context) (common.Hash, error) {
	if c.NArg() != 1 {
		return common.Hash{}, usageError("%s needs a user operation hash", c.Command.FullName())
	}
	return parseHash("user operation hash", c.Args().First())
}

func userOpReceipt(c *cli.Context) error {
	hash, err := hashArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var receipt *safe4337.UserOpReceipt
	if c.Bool("wait") {
		receipt, err = s.client.WaitForUserOperation(c.Context, hash)
	} else {
		receipt, err = s.client.GetUserOpReceipt(c.Context, hash)
	}
	if err != nil {
		return err
	}
	if receipt == nil {
		return safe4337.ErrNoReceipt
	}
	return printReceipt(c, s, receipt)
}

func printReceipt(c *cli.Context, s *session, receipt *safe4337.UserOpReceipt) error {
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"User operation", receipt.UserOpHash.Hex()},
		{"Sender", receipt.Sender.Hex()},
		{"Success", yesNo(receipt.Success)},
		{"Actual gas used", safe4337.HexToBigInt(receipt.ActualGasUsed)},
		{"Actual gas cost", safe4337.FormatEther(safe4337.HexToBigInt(receipt.ActualGasCost)) + " ETH"},
		{"Transaction", s.network.TxURL(receipt.TransactionHash())},
	})
	if receipt.Paymaster != (common.Address{}) {
		t.AppendRow(table.Row{"Paymaster", receipt.Paymaster.Hex()})
	}
	if receipt.Reason != "" {
		t.AppendRow(table.Row{"Reason", receipt.Reason})
	}
	t.Render()
	if !receipt.Success {
		return errors.New("user operation reverted")
	}
	return nil
}

func userOpGet(c *cli.Context) error {
	hash, err := hashArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	found, err := s.client.GetUserOpByHash(c.Context, hash)
	if err != nil {
		return err
	}
	if found == nil {
		return errors.New("user operation not found")
	}
	out := map[string]any{
		"entryPoint":      found.EntryPoint,
		"transactionHash": found.TransactionHash,
		"blockHash":       found.BlockHash,
		"blockNumber":     found.BlockNumber,
	}
	if found.UserOperation != nil {
		out["userOperation"] = found.UserOperation.ToBody()
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func handleOps(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	userOp, err := s.buildUserOp(c)
	if err != nil {
		return err
	}
	// no bundler estimates the operation
	userOp.CallGasLimit = big.NewInt(safe4337.DefaultCallGasLimit)
	userOp.VerificationGasLimit = big.NewInt(safe4337.DefaultVerificationGasLimit)
	userOp.PreVerificationGas = big.NewInt(safe4337.DefaultPreVerificationGas)
	signed, _, err := s.client.FillAndSign(c.Context, userOp, s.signer())
	if err != nil {
		return err
	}
	packed := safe4337.PackUserOperation(signed)
	opHashes, txHash, err := s.client.HandleOps(c.Context, []entrypoint.PackedUserOperation{packed})
	if err != nil {
		return err
	}
	for _, h := range opHashes {
		printf(c, "User operation %s\n", h.Hex())
	}
	printf(c, "Transaction %s\n", s.network.TxURL(txHash))
	if !c.Bool("wait") {
		return nil
	}
	receipt, events, err := s.client.WaitHandleOps(c.Context, txHash)
	if err != nil {
		return err
	}
	t := newTable(c, "User operation", "Success", "Actual gas used", "Actual gas cost")
	failed := 0
	for _, ev := range events {
		t.AppendRow(table.Row{common.Hash(ev.UserOpHash).Hex(), yesNo(ev.Success), ev.ActualGasUsed, safe4337.FormatEther(ev.ActualGasCost) + " ETH"})
		if !ev.Success {
			failed++
		}
	}
	t.Render()
	printf(c, "Block %s, gas used %d\n", receipt.BlockNumber, receipt.GasUsed)
	if failed > 0 {
		return fmt.Errorf("%d of %d user operations reverted", failed, len(events))
	}
	return nil
}
