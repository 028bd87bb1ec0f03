package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jedib0t/go-pretty/v6/table"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/urfave/cli/v2"
)

// SafeRecordFile is the deployment record written next to the address files.
const SafeRecordFile = "safe-deployment.json"

var safeAddressFlag = &cli.StringFlag{
	Name:  "safe",
	Usage: "Safe address (defaults to the address book, then to the owner's predicted Safe)",
}

var safeCmd = &cli.Command{
	Name:  "safe",
	Usage: "Predict, deploy and inspect the signer's 1/1 Safe",
	Subcommands: []*cli.Command{
		{
			Name:  "address",
			Usage: "Predict the Safe address of the signer",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "simulate",
					Usage: "Cross-check the prediction with an eth_call to the factory",
				},
			},
			Action: safeAddress,
		},
		{
			Name:   "deploy",
			Usage:  "Deploy the signer's Safe with a factory transaction",
			Action: safeDeploy,
		},
		{
			Name:   "status",
			Usage:  "Show owners, threshold, modules and balances of a Safe",
			Flags:  []cli.Flag{safeAddressFlag},
			Action: safeStatus,
		},
		{
			Name:      "from-tx",
			Usage:     "Find the Safe created by a deployment transaction",
			ArgsUsage: "<tx-hash>",
			Action:    safeFromTx,
		},
	},
}

func safeAddress(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	salt, err := s.saltNonce(c)
	if err != nil {
		return err
	}
	addr, err := s.client.GetAccount(c.Context, s.owner(), salt)
	if err != nil {
		return err
	}
	deployed, err := s.client.IsDeployed(c.Context, addr)
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Owner", s.owner().Hex()},
		{"Salt nonce", salt},
		{"Safe", addr.Hex()},
		{"Deployed", yesNo(deployed)},
		{"Explorer", s.network.AddressURL(addr)},
	})
	if c.Bool("simulate") {
		simulated, err := s.client.SimulateSafeAddress(c.Context, s.owner(), salt)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{"Factory eth_call", simulated.Hex()})
		if simulated != addr {
			t.Render()
			return fmt.Errorf("predicted safe %s differs from factory result %s", addr.Hex(), simulated.Hex())
		}
	}
	t.Render()
	return nil
}

func safeDeploy(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	salt, err := s.saltNonce(c)
	if err != nil {
		return err
	}
	predicted, err := s.client.GetAccount(c.Context, s.owner(), salt)
	if err != nil {
		return err
	}
	deployed, err := s.client.IsDeployed(c.Context, predicted)
	if err != nil {
		return err
	}
	if deployed {
		printf(c, "Safe %s is already deployed\n", predicted.Hex())
		return s.book.Write(safe4337.SafeFile, predicted)
	}

	advice, err := s.client.Funding(c.Context, s.owner())
	if err != nil {
		return err
	}
	if !advice.Sufficient {
		s.logger.Warn("signer balance is below the deployment threshold",
			"balance", safe4337.FormatEther(advice.Balance), "threshold", safe4337.FormatEther(advice.Threshold))
	}

	s.logger.Info("Deploying Safe", "owner", s.owner(), "saltNonce", salt, "predicted", predicted)
	receipt, addr, err := s.client.DeploySafe(c.Context, s.signer(), s.owner(), salt)
	if err != nil {
		return err
	}
	if addr != predicted {
		return fmt.Errorf("deployed safe %s differs from prediction %s", addr.Hex(), predicted.Hex())
	}
	if err := s.book.Write(safe4337.SafeFile, addr); err != nil {
		return err
	}
	record := safe4337.NewDeploymentRecord(s.network, addr, s.owner(), receipt.TxHash, receipt.BlockNumber.Uint64(), salt.String())
	if err := s.book.WriteRecord(SafeRecordFile, record); err != nil {
		return err
	}

	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Safe", addr.Hex()},
		{"Transaction", s.network.TxURL(receipt.TxHash)},
		{"Block", receipt.BlockNumber},
		{"Gas used", receipt.GasUsed},
		{"Record", record.ID},
	})
	t.Render()
	return nil
}

func safeStatus(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.safeAddress(c)
	if err != nil {
		return err
	}
	state, err := s.client.SafeStatus(c.Context, addr)
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Safe", state.Address.Hex()},
		{"Deployed", yesNo(state.Deployed)},
		{"Balance", safe4337.FormatEther(state.Balance) + " ETH"},
	})
	if state.Deployed {
		t.AppendRows([]table.Row{
			{"Version", state.Version},
			{"Owners", joinAddresses(state.Owners)},
			{"Threshold", state.Threshold},
			{"Modules", joinAddresses(state.Modules)},
			{"4337 module enabled", yesNo(state.ModuleEnabled)},
			{"Safe nonce", state.Nonce},
			{"EntryPoint nonce", state.EntryPointNonce},
		})
	}
	t.Render()
	if state.Deployed && !state.ModuleEnabled {
		return fmt.Errorf("safe %s does not enable module %s", addr.Hex(), s.network.Safe4337Module.Hex())
	}
	return nil
}

func safeFromTx(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("safe from-tx needs a transaction hash")
	}
	txHash, err := parseHash("transaction hash", c.Args().First())
	if err != nil {
		return err
	}
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	receipt, addr, err := s.client.SafeFromTx(c.Context, txHash)
	if err != nil {
		return err
	}
	if err := s.book.Write(safe4337.SafeFile, addr); err != nil {
		return err
	}
	printf(c, "Safe %s created in block %s\n%s\n", addr.Hex(), receipt.BlockNumber, s.network.AddressURL(addr))
	return nil
}

func joinAddresses(addrs []common.Address) string {
	hexes := make([]string, len(addrs))
	for i, a := range addrs {
		hexes[i] = a.Hex()
	}
	return strings.Join(hexes, "\n")
}
