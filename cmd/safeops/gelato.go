package main

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/urfave/cli/v2"
)

var gelatoCmd = &cli.Command{
	Name:  "gelato",
	Usage: "Query the Gelato relay",
	Subcommands: []*cli.Command{
		{
			Name:      "task",
			Usage:     "Show the state of a relay task",
			ArgsUsage: "<task-id>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "wait", Usage: "Poll until the task reaches a final state"},
			},
			Action: gelatoTask,
		},
	},
}

func gelatoTask(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("gelato task needs a task id")
	}
	network, err := loadNetwork(c)
	if err != nil {
		return err
	}
	relay := safe4337.NewGelatoRelay(network.GelatoUrl, slog.Default())

	taskId := c.Args().First()
	var status *safe4337.TaskStatus
	if c.Bool("wait") {
		status, err = relay.WaitForTask(c.Context, taskId)
	} else {
		status, err = relay.TaskStatus(c.Context, taskId)
	}
	if status != nil {
		t := newTable(c)
		t.AppendRows([]table.Row{
			{"Task", status.TaskID},
			{"Chain ID", status.ChainID},
			{"State", status.TaskState},
			{"Created", status.CreationDate},
		})
		if status.TransactionHash != "" {
			t.AppendRow(table.Row{"Transaction", status.TransactionHash})
			t.AppendRow(table.Row{"Block", status.BlockNumber})
		}
		if status.LastCheckMessage != "" {
			t.AppendRow(table.Row{"Last check", status.LastCheckMessage})
		}
		t.Render()
	}
	if err != nil {
		return err
	}
	if status.TaskState == safe4337.TaskExecReverted || status.TaskState == safe4337.TaskCancelled {
		return fmt.Errorf("gelato task %s ended %s", taskId, status.TaskState)
	}
	return nil
}
