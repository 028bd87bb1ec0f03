package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jedib0t/go-pretty/v6/table"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/urfave/cli/v2"
)

var fundCmd = &cli.Command{
	Name:  "fund",
	Usage: "Fund the Safe from the signer",
	Subcommands: []*cli.Command{
		{
			Name:  "eth",
			Usage: "Send ETH to the Safe",
			Flags: []cli.Flag{
				safeAddressFlag,
				&cli.StringFlag{Name: "amount", Usage: "ETH amount", Value: "0.001"},
			},
			Action: fundEth,
		},
		{
			Name:  "token",
			Usage: "Send ERC-20 tokens to the Safe",
			Flags: []cli.Flag{
				safeAddressFlag,
				&cli.StringFlag{Name: "token", Usage: "Token address (defaults to the address book, then the network test token)"},
				&cli.StringFlag{Name: "amount", Usage: "Token amount", Value: "1"},
			},
			Action: fundToken,
		},
	},
}

func fundEth(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	to, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), 18)
	if err != nil {
		return err
	}
	s.logger.Info("Sending ETH", "to", to, "amount", safe4337.FormatEther(amount))
	receipt, err := s.client.TransferNative(c.Context, s.signer(), to, amount)
	if err != nil {
		return err
	}
	balance, err := s.client.GetAccountBalance(c.Context, to)
	if err != nil {
		return err
	}
	printf(c, "%s\nSafe balance: %s ETH\n", s.network.TxURL(receipt.TxHash), safe4337.FormatEther(balance))
	return nil
}

func (s *session) tokenAddress(c *cli.Context) (common.Address, error) {
	if raw := c.String("token"); raw != "" {
		return parseAddress("token", raw)
	}
	if addr, err := s.book.Read(safe4337.TokenFile); err == nil {
		return addr, nil
	}
	return s.network.TestToken, nil
}

func fundToken(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	to, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	token, err := s.tokenAddress(c)
	if err != nil {
		return err
	}
	held, info, err := s.client.TokenBalance(c.Context, token, s.owner())
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), info.Decimals)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return fmt.Errorf("signer holds %s %s, less than %s", safe4337.FormatUnits(held, info.Decimals), info.Symbol, c.String("amount"))
	}
	receipt, err := s.client.TransferToken(c.Context, s.signer(), token, to, amount)
	if err != nil {
		return err
	}
	balance, _, err := s.client.TokenBalance(c.Context, token, to)
	if err != nil {
		return err
	}
	printf(c, "%s\nSafe balance: %s %s\n", s.network.TxURL(receipt.TxHash), safe4337.FormatUnits(balance, info.Decimals), info.Symbol)
	return nil
}

var deployCmd = &cli.Command{
	Name:  "deploy",
	Usage: "Deploy test contracts",
	Subcommands: []*cli.Command{
		{
			Name:      "artifact",
			Usage:     "Deploy a Foundry or Hardhat artifact",
			ArgsUsage: "<artifact.json> [constructor args...]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "save-as",
					Usage: "Record the address in the address book: counter or token",
				},
			},
			Action: deployArtifact,
		},
	},
}

var bookNames = map[string]string{
	"counter": safe4337.CounterFile,
	"token":   safe4337.TokenFile,
}

func deployArtifact(c *cli.Context) error {
	if c.NArg() < 1 {
		return usageError("deploy artifact needs an artifact file")
	}
	saveAs := strings.ToLower(c.String("save-as"))
	bookFile, ok := bookNames[saveAs]
	if saveAs != "" && !ok {
		return usageError("invalid save-as %q: must be counter or token", saveAs)
	}
	artifact, err := safe4337.LoadArtifact(c.Args().First())
	if err != nil {
		return usageError("%v", err)
	}
	args, err := artifact.ConstructorArgs(c.Args().Tail())
	if err != nil {
		return usageError("%v", err)
	}

	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("Deploying contract", "name", artifact.Name, "bytecodeSize", len(artifact.Bytecode))
	addr, receipt, err := s.client.DeployArtifact(c.Context, s.signer(), artifact, args...)
	if err != nil {
		return err
	}
	if bookFile != "" {
		if err := s.book.Write(bookFile, addr); err != nil {
			return err
		}
	}
	printDeployment(c, s, artifact.Name, addr, receipt)
	return nil
}

func printDeployment(c *cli.Context, s *session, name string, addr common.Address, receipt *types.Receipt) {
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Contract", name},
		{"Address", addr.Hex()},
		{"Transaction", s.network.TxURL(receipt.TxHash)},
		{"Gas used", receipt.GasUsed},
	})
	t.Render()
}

var counterCmd = &cli.Command{
	Name:  "counter",
	Usage: "Use the counter contract of the address book",
	Subcommands: []*cli.Command{
		{
			Name:   "read",
			Usage:  "Read the counter value",
			Action: counterRead,
		},
		{
			Name:   "increment",
			Usage:  "Increment the counter from the Safe with a user operation",
			Flags:  []cli.Flag{safeAddressFlag, waitFlag},
			Action: counterIncrement,
		},
	},
}

func counterRead(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.book.Read(safe4337.CounterFile)
	if err != nil {
		return usageError("no counter in the address book: %v", err)
	}
	value, err := s.client.CounterValue(c.Context, addr)
	if err != nil {
		return err
	}
	printf(c, "Counter %s: %s\n", addr.Hex(), value)
	return nil
}

func counterIncrement(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.book.Read(safe4337.CounterFile)
	if err != nil {
		return usageError("no counter in the address book: %v", err)
	}
	before, err := s.client.CounterValue(c.Context, addr)
	if err != nil {
		return err
	}
	call, err := safe4337.IncrementCall(addr)
	if err != nil {
		return err
	}
	callData, err := safe4337.ExecuteBatchData(s.network.MultiSend, []safe4337.Call{call})
	if err != nil {
		return err
	}
	salt, err := s.saltNonce(c)
	if err != nil {
		return err
	}
	sender, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	hash, err := s.client.SendUserOp(c.Context, safe4337.NewUserOp(sender, callData, salt), s.signer())
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
	if err := printReceipt(c, s, receipt); err != nil {
		return err
	}
	after, err := s.client.CounterValue(c.Context, addr)
	if err != nil {
		return err
	}
	printf(c, "Counter %s: %s -> %s\n", addr.Hex(), before, after)
	return nil
}

var entryPointCmd = &cli.Command{
	Name:  "entrypoint",
	Usage: "Manage EntryPoint deposits",
	Subcommands: []*cli.Command{
		{
			Name:  "prefund",
			Usage: "Deposit ETH to the EntryPoint for an account",
			Flags: []cli.Flag{
				safeAddressFlag,
				&cli.StringFlag{Name: "amount", Usage: "ETH amount", Value: "0.01"},
			},
			Action: entryPointPrefund,
		},
		{
			Name:   "deposit",
			Usage:  "Show the EntryPoint deposit of an account",
			Flags:  []cli.Flag{safeAddressFlag},
			Action: entryPointDeposit,
		},
	},
}

func entryPointPrefund(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	account, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), 18)
	if err != nil {
		return err
	}
	receipt, err := s.client.Prefund(c.Context, s.signer(), account, amount)
	if err != nil {
		return err
	}
	deposit, err := s.client.DepositOf(c.Context, account)
	if err != nil {
		return err
	}
	printf(c, "%s\nDeposit of %s: %s ETH\n", s.network.TxURL(receipt.TxHash), account.Hex(), safe4337.FormatEther(deposit))
	return nil
}

func entryPointDeposit(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	account, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	deposit, err := s.client.DepositOf(c.Context, account)
	if err != nil {
		return err
	}
	printf(c, "Deposit of %s: %s ETH\n", account.Hex(), safe4337.FormatEther(deposit))
	return nil
}
