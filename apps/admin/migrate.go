package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/labstack/gommon/color"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/migration"
)

const countdownSeconds = 3

type planRunner interface {
	Run(ctx context.Context, sess migration.Session, plan *migration.Plan) (*migration.Result, error)
	Status(ctx context.Context, cat migration.Catalog, plan *migration.Plan) (*migration.Report, error)
}

var (
	newRunnerFunc = func(out io.Writer, log core.Logger, dryRun bool, runID string) planRunner { // mockable
		r := migration.NewRunner(out, log, dryRun)
		r.RunID = runID
		return r
	}
	countdownFunc = countdown // mockable
)

// countdown gives the operator a few seconds to abort with Ctrl-C.
func countdown(ctx context.Context, out io.Writer, seconds int) error {
	clr := color.New()
	clr.SetOutput(out)
	fmt.Fprint(out, clr.Yellow("Changes will be applied in"))
	for i := seconds; i > 0; i-- {
		fmt.Fprintf(out, " %d...", i)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return core.NewShutdownError("migration cancelled before it started")
		case <-time.After(time.Second):
		}
	}
	fmt.Fprintln(out)
	return nil
}

func (cli *commandLine) migrate(planName string, dryRun, yes bool) error {
	plan, err := migration.Lookup(planName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Target database: %s\n", cli.target)
	if !dryRun && !yes {
		if err := countdownFunc(cli.ctx, cli.out, countdownSeconds); err != nil {
			return err
		}
	}

	return cli.sessions(cli.ctx, func(sess migration.Session) error {
		res, err := newRunnerFunc(cli.out, cli.log, dryRun, cli.runID).Run(cli.ctx, sess, plan)
		if err != nil {
			return err
		}
		cli.log.Info("migrate finished", map[string]interface{}{
			"plan":     res.Plan,
			"changes":  res.Changes,
			"skipped":  res.Skipped,
			"duration": res.Finished.Sub(res.Started).String(),
		})
		return nil
	})
}

func (cli *commandLine) status(planName string) error {
	plan, err := migration.Lookup(planName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Target database: %s\n", cli.target)
	return cli.sessions(cli.ctx, func(sess migration.Session) error {
		_, err := newRunnerFunc(cli.out, cli.log, false, cli.runID).Status(cli.ctx, sess, plan)
		return err
	})
}
