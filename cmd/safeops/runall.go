package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

// stepPause separates the steps of run-all.
var stepPause = time.Second

type step struct {
	name   string
	action cli.ActionFunc
}

// readOnlySteps are the checks of run-all, in order. None of them sends a transaction.
var readOnlySteps = []step{
	{"network-check", networkCheck},
	{"funds", checkFunds},
	{"infra check", infraCheck},
	{"modules check", moduleCheck},
	{"safe address", safeAddress},
	{"safe status", safeStatus},
	{"bundler info", bundlerInfo},
}

type stepResult struct {
	name     string
	err      error
	duration time.Duration
}

var runAllCmd = &cli.Command{
	Name:  "run-all",
	Usage: "Run every read-only check and summarize the results",
	Flags: []cli.Flag{
		safeAddressFlag,
		&cli.BoolFlag{Name: "simulate", Usage: "Cross-check the Safe prediction with the factory"},
		&cli.BoolFlag{Name: "verbose", Usage: "Show the output of every step"},
	},
	Action: runAll,
}

func runAll(c *cli.Context) error {
	results := runSteps(c, readOnlySteps)

	t := newTable(c, "#", "Step", "Result", "Duration", "Error")
	failed := 0
	for i, r := range results {
		status, msg := "ok", ""
		if r.err != nil {
			status, msg = "failed", r.err.Error()
			failed++
		}
		t.AppendRow(table.Row{i + 1, r.name, status, r.duration.Round(time.Millisecond), msg})
	}
	t.AppendFooter(table.Row{"", "", "", "passed", len(results) - failed})
	t.Render()
	if failed > 0 {
		return &ExitError{Code: 1, Message: "some checks failed"}
	}
	return nil
}

// runSteps runs every step even when an earlier one fails.
func runSteps(c *cli.Context, steps []step) []stepResult {
	out := c.App.Writer
	if !c.Bool("verbose") {
		c.App.Writer = io.Discard
	}
	defer func() { c.App.Writer = out }()

	results := make([]stepResult, 0, len(steps))
	for i, s := range steps {
		if i > 0 {
			select {
			case <-c.Context.Done():
				results = append(results, stepResult{name: s.name, err: c.Context.Err()})
				continue
			case <-time.After(stepPause):
			}
		}
		slog.Info("Running step", "step", s.name)
		start := time.Now()
		err := s.action(c)
		results = append(results, stepResult{name: s.name, err: err, duration: time.Since(start)})
		if err != nil {
			slog.Warn("Step failed", "step", s.name, "error", err)
		}
	}
	return results
}
