package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/urfave/cli/v2"
)

func newTable(c *cli.Context, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetStyle(table.StyleLight)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var envCmd = &cli.Command{
	Name:  "env",
	Usage: "Validate the environment variables",
	Action: func(c *cli.Context) error {
		_, report := ValidateEnv(os.Getenv)
		t := newTable(c, "Level", "Message")
		for _, err := range report.Errors {
			t.AppendRow(table.Row{"error", err.Error()})
		}
		for _, w := range report.Warnings {
			t.AppendRow(table.Row{"warning", w})
		}
		if len(report.Errors) == 0 && len(report.Warnings) == 0 {
			t.AppendRow(table.Row{"ok", "environment is complete"})
		}
		t.Render()
		if len(report.Errors) > 0 {
			return &ExitError{Code: 1, Message: fmt.Sprintf("%d environment error(s)", len(report.Errors))}
		}
		return nil
	},
}

var networkCheckCmd = &cli.Command{
	Name:   "network-check",
	Usage:  "Check that the node serves the configured chain",
	Action: networkCheck,
}

func networkCheck(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.client.NetworkCheck(c.Context)
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Network", s.network.Name},
		{"Chain ID", info.ChainID},
		{"Expected chain ID", info.ExpectedChain},
		{"Block number", info.BlockNumber},
		{"Matches", yesNo(info.Matches())},
	})
	t.Render()
	if !info.Matches() {
		return fmt.Errorf("node chain id %s does not match %s (%d)", info.ChainID, s.network.Name, info.ExpectedChain)
	}
	return nil
}

var fundsCmd = &cli.Command{
	Name:   "funds",
	Usage:  "Check that the signer can pay for deployments",
	Action: checkFunds,
}

func checkFunds(c *cli.Context) error {
	s, err := newSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	advice, err := s.client.Funding(c.Context, s.owner())
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Account", advice.Account.Hex()},
		{"Balance", safe4337.FormatEther(advice.Balance) + " ETH"},
		{"Needed", safe4337.FormatEther(advice.Threshold) + " ETH"},
		{"Sufficient", yesNo(advice.Sufficient)},
	})
	for _, faucet := range advice.Faucets {
		t.AppendRow(table.Row{"Faucet", faucet})
	}
	t.Render()
	return nil
}

var infraCmd = &cli.Command{
	Name:  "infra",
	Usage: "Inspect the ERC-4337 infrastructure contracts",
	Subcommands: []*cli.Command{
		{
			Name:   "check",
			Usage:  "Look for code at every contract of the network profile",
			Action: infraCheck,
		},
	},
}

func infraCheck(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	checks, err := s.client.InfrastructureCheck(c.Context)
	if err != nil {
		return err
	}
	t := newTable(c, "Contract", "Address", "Deployed", "Code size")
	missing := 0
	for _, check := range checks {
		if !check.Deployed {
			missing++
		}
		t.AppendRow(table.Row{check.Name, check.Address.Hex(), yesNo(check.Deployed), check.CodeSize})
	}
	t.Render()
	if missing > 0 {
		return fmt.Errorf("%d infrastructure contract(s): %w", missing, safe4337.ErrNotDeployed)
	}
	return nil
}

var modulesCmd = &cli.Command{
	Name:  "modules",
	Usage: "Inspect the Safe 4337 module",
	Subcommands: []*cli.Command{
		{
			Name:   "check",
			Usage:  "Compare the module's SUPPORTED_ENTRYPOINT with the configured entry point",
			Action: moduleCheck,
		},
	},
}

func moduleCheck(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.client.ModuleCheck(c.Context)
	if errors.Is(err, safe4337.ErrNotDeployed) {
		printf(c, "Safe 4337 module %s has no code on %s\n", info.Module.Hex(), s.network.Name)
		return err
	}
	if err != nil {
		return err
	}
	t := newTable(c)
	t.AppendRows([]table.Row{
		{"Module", info.Module.Hex()},
		{"Supported entry point", info.SupportedEntryPoint.Hex()},
		{"Configured entry point", s.network.EntryPoint.Hex()},
		{"Matches", yesNo(info.Matches)},
		{"Domain separator", info.DomainSeparator.Hex()},
		{"Domain matches", yesNo(info.DomainMatches)},
	})
	t.Render()
	if !info.Matches {
		return errors.New("safe 4337 module does not support the configured entry point")
	}
	if !info.DomainMatches {
		return errors.New("safe operation hashes signed here would not verify on the module")
	}
	return nil
}

var bundlerCmd = &cli.Command{
	Name:  "bundler",
	Usage: "Query the bundler",
	Subcommands: []*cli.Command{
		{
			Name:   "info",
			Usage:  "Show the bundler's chain, entry points and suggested tip",
			Action: bundlerInfo,
		},
	},
}

func bundlerInfo(c *cli.Context) error {
	s, err := newSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	chainId, err := s.client.BundlerChainId(c.Context)
	if err != nil {
		return err
	}
	entryPoints, err := s.client.SupportedEntryPoints(c.Context)
	if err != nil {
		return err
	}
	supported := false
	t := newTable(c)
	t.AppendRow(table.Row{"Chain ID", chainId})
	for _, ep := range entryPoints {
		if ep == s.network.EntryPoint {
			supported = true
		}
		t.AppendRow(table.Row{"Entry point", ep.Hex()})
	}
	t.AppendRow(table.Row{"Configured entry point supported", yesNo(supported)})
	if tip, err := s.client.MaxPriorityFeePerGas(c.Context); err == nil {
		t.AppendRow(table.Row{"Max priority fee", safe4337.FormatUnits(tip, 9) + " gwei"})
	} else {
		s.logger.Debug("bundler does not suggest a priority fee", "error", err)
	}
	t.Render()
	if !supported {
		return fmt.Errorf("bundler does not support entry point %s", s.network.EntryPoint.Hex())
	}
	return nil
}
