package migration

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
)

const stmtLogLen = 120

// ErrUnassignedProjects is returned when projects are left without a tutor after
// both backfills, so tutor_id cannot be made NOT NULL.
var ErrUnassignedProjects = errors.New("projects without tutor after backfill")

type StepStatus int

const (
	StepSkipped StepStatus = iota
	StepApplied
	StepUnchanged // ran, but every statement was already applied
	StepPlanned   // dry run
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepSkipped:
		return "skipped"
	case StepApplied:
		return "applied"
	case StepUnchanged:
		return "already applied"
	case StepPlanned:
		return "planned"
	default:
		return "failed"
	}
}

type (
	StepOutcome struct {
		Number  int
		Name    string
		Status  StepStatus
		Reason  string
		Applied int
		Skipped int
	}

	Result struct {
		RunID    string
		Plan     string
		DryRun   bool
		Steps    []StepOutcome
		Changes  int
		Skipped  int
		Started  time.Time
		Finished time.Time
		Report   *Report
	}
)

// UpToDate is true when the run changed nothing and nothing is planned.
func (r *Result) UpToDate() bool { return r.Changes == 0 }

// StepError aborts a run. Code and Statement are set when a SQL statement failed.
type StepError struct {
	Step      int
	Name      string
	Code      string
	Statement string
	Err       error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %d (%s)", e.Step, e.Name)
	if e.Code != "" {
		msg += " " + e.Code
	}
	return msg + ": " + e.Err.Error()
}

func (e *StepError) Cause() error  { return e.Err }
func (e *StepError) Unwrap() error { return e.Err }

// Exec is the statement executor handed to each step.
type Exec struct {
	sess    Session
	con     *console
	log     core.Logger
	dryRun  bool
	runID   string
	outcome *StepOutcome
}

func (x *Exec) DryRun() bool { return x.dryRun }

// Catalog gives steps read access to the session, e.g. to resolve constraint names.
func (x *Exec) Catalog() Catalog { return x.sess }

// Apply runs stmt. Tolerated failures are reported and swallowed; any other
// failure is returned as a *StepError.
func (x *Exec) Apply(ctx context.Context, stmt string) error {
	if x.dryRun {
		x.con.planned(stmt)
		x.outcome.Applied++
		return nil
	}
	if _, err := x.sess.Exec(ctx, stmt); err != nil {
		if Classify(err) == Continue {
			x.con.benign(stmt, CodeName(err), benignMeaning(err))
			x.outcome.Skipped++
			return nil
		}
		serr := &StepError{
			Step:      x.outcome.Number,
			Name:      x.outcome.Name,
			Code:      CodeName(err),
			Statement: core.Truncate(stmt, stmtLogLen),
			Err:       err,
		}
		x.log.Error("migration statement failed", serr, map[string]interface{}{
			"run_id":    x.runID,
			"step":      serr.Step,
			"code":      serr.Code,
			"statement": serr.Statement,
		})
		return serr
	}
	x.con.applied(stmt)
	x.outcome.Applied++
	return nil
}

func (x *Exec) Note(format string, args ...interface{}) {
	x.con.note(fmt.Sprintf(format, args...))
}

func (x *Exec) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	x.con.warn(msg)
	x.log.Warn(msg, map[string]interface{}{"run_id": x.runID, "step": x.outcome.Number})
}

// DropForeignKeys drops every foreign key of table covering column, whatever its name.
func (x *Exec) DropForeignKeys(ctx context.Context, table, column string) error {
	fks, err := x.sess.ForeignKeys(ctx, table)
	if err != nil {
		return errors.Wrapf(err, "listing foreign keys of %s", table)
	}
	var dropped int
	for _, fk := range fks {
		if fk.Column != column {
			continue
		}
		if err := x.Apply(ctx, fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", table, fk.Name)); err != nil {
			return err
		}
		dropped++
	}
	if dropped == 0 {
		x.Note("no foreign key on %s.%s", table, column)
	}
	return nil
}

// Runner drives plans against one session.
type Runner struct {
	Out    io.Writer
	Log    core.Logger
	DryRun bool
	RunID  string // generated when empty

	nowFunc func() time.Time
	idFunc  func() string
}

func NewRunner(out io.Writer, log core.Logger, dryRun bool) *Runner {
	return &Runner{
		Out:     out,
		Log:     log,
		DryRun:  dryRun,
		nowFunc: time.Now,
		idFunc:  func() string { return uuid.New().String() },
	}
}

// Run probes, applies the plan's pending steps in order and verifies the result.
// The returned Result is non-nil even when err is not.
func (r *Runner) Run(ctx context.Context, sess Session, plan *Plan) (*Result, error) {
	con := newConsole(r.Out)
	runID := r.RunID
	if runID == "" {
		runID = r.idFunc()
	}
	res := &Result{RunID: runID, Plan: plan.Name, DryRun: r.DryRun, Started: r.nowFunc()}
	defer func() { res.Finished = r.nowFunc() }()

	con.header(plan.Title, res.RunID, r.DryRun)
	r.Log.Info("migration started", map[string]interface{}{"run_id": res.RunID, "plan": plan.Name, "dry_run": r.DryRun})

	facts, err := plan.Probe(ctx, sess)
	if err != nil {
		return res, errors.Wrap(err, "probing schema")
	}
	con.facts(facts)

	if plan.Requires != nil {
		if err := plan.Requires(facts); err != nil {
			con.failedPrecondition(err)
			return res, err
		}
	}

	for i, step := range plan.Steps {
		out := StepOutcome{Number: i + 1, Name: step.Name}
		con.stepStart(out.Number, len(plan.Steps), step.Name)

		if reason := step.Skip(facts); reason != "" {
			out.Status, out.Reason = StepSkipped, reason
			con.stepSkipped(reason)
			res.Steps = append(res.Steps, out)
			continue
		}

		x := &Exec{sess: sess, con: con, log: r.Log, dryRun: r.DryRun, runID: res.RunID, outcome: &out}
		if err := step.Run(ctx, x, facts); err != nil {
			out.Status = StepFailed
			res.Steps = append(res.Steps, out)
			res.Changes += out.Applied
			res.Skipped += out.Skipped

			var serr *StepError
			if !errors.As(err, &serr) {
				serr = &StepError{Step: out.Number, Name: step.Name, Err: err}
				r.Log.Error("migration step failed", serr, map[string]interface{}{"run_id": res.RunID, "step": out.Number})
			}
			con.failed(serr)
			return res, serr
		}

		switch {
		case r.DryRun && out.Applied > 0:
			out.Status = StepPlanned
		case out.Applied > 0:
			out.Status = StepApplied
		default:
			out.Status = StepUnchanged
		}
		res.Changes += out.Applied
		res.Skipped += out.Skipped
		res.Steps = append(res.Steps, out)
	}

	con.verdict(res)
	r.Log.Info("migration finished", map[string]interface{}{"run_id": res.RunID, "changes": res.Changes, "skipped": res.Skipped})

	report, err := r.verify(ctx, sess, plan, con)
	res.Report = report
	return res, err
}

// Status probes and verifies without running any step.
func (r *Runner) Status(ctx context.Context, cat Catalog, plan *Plan) (*Report, error) {
	con := newConsole(r.Out)
	con.statusHeader(plan.Title)
	facts, err := plan.Probe(ctx, cat)
	if err != nil {
		return nil, errors.Wrap(err, "probing schema")
	}
	con.facts(facts)
	return r.verify(ctx, cat, plan, con)
}

func (r *Runner) verify(ctx context.Context, cat Catalog, plan *Plan, con *console) (*Report, error) {
	report, err := plan.Verify(ctx, cat)
	if err != nil {
		return nil, errors.Wrap(err, "verifying schema")
	}
	if r.DryRun {
		con.note("dry run: the report below reflects the unchanged database")
	}
	con.report(report)
	if !report.FullyMigrated() {
		r.Log.Warn("schema not fully migrated", map[string]interface{}{"plan": plan.Name, "problems": report.Problems()})
	}
	return report, nil
}
