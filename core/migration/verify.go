package migration

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core/user"
)

type (
	// Check is a presence expectation on a table or column.
	Check struct {
		Label   string
		Present bool
		Want    bool
	}

	// Count is a row count; a violation count must be zero.
	Count struct {
		Label     string
		Value     int
		Violation bool
	}

	Report struct {
		Plan        string
		Tables      []Check
		Columns     []Check
		Roles       []RoleCount
		Counts      []Count
		ForeignKeys []ForeignKey
		Preview     []ProjectPreview
		Notes       []string
	}
)

func (c Check) OK() bool { return c.Present == c.Want }

func (c Count) OK() bool { return !c.Violation || c.Value == 0 }

// UnexpectedRoles returns the role counts outside the target enumeration.
func (r *Report) UnexpectedRoles() []RoleCount {
	var out []RoleCount
	for _, rc := range r.Roles {
		if !user.IsValidRole(rc.Rol) {
			out = append(out, rc)
		}
	}
	return out
}

// Problems describes every failed expectation of the report.
func (r *Report) Problems() []string {
	var out []string
	for _, c := range append(append([]Check{}, r.Tables...), r.Columns...) {
		if !c.OK() {
			if c.Want {
				out = append(out, c.Label+" is missing")
			} else {
				out = append(out, c.Label+" still exists")
			}
		}
	}
	for _, c := range r.Counts {
		if !c.OK() {
			out = append(out, fmt.Sprintf("%s: %d", c.Label, c.Value))
		}
	}
	for _, rc := range r.UnexpectedRoles() {
		out = append(out, fmt.Sprintf("%d users with role %q", rc.Total, rc.Rol))
	}
	return out
}

// FullyMigrated holds when every structural check passes, every violation
// count is zero and only target roles remain.
func (r *Report) FullyMigrated() bool { return len(r.Problems()) == 0 }

type verifier struct {
	ctx    context.Context
	cat    Catalog
	report *Report
	err    error
}

func newVerifier(ctx context.Context, cat Catalog, plan string) *verifier {
	return &verifier{ctx: ctx, cat: cat, report: &Report{Plan: plan}}
}

func (v *verifier) table(name string, want bool) bool {
	if v.err != nil {
		return false
	}
	ok, err := v.cat.TableExists(v.ctx, name)
	if err != nil {
		v.err = errors.Wrapf(err, "checking table %s", name)
		return false
	}
	v.report.Tables = append(v.report.Tables, Check{Label: "table " + name, Present: ok, Want: want})
	return ok
}

// exists looks a table up without recording an expectation.
func (v *verifier) exists(name string) bool {
	if v.err != nil {
		return false
	}
	ok, err := v.cat.TableExists(v.ctx, name)
	if err != nil {
		v.err = errors.Wrapf(err, "checking table %s", name)
	}
	return ok
}

func (v *verifier) column(table, column string, want bool) bool {
	if v.err != nil {
		return false
	}
	ok, err := v.cat.ColumnExists(v.ctx, table, column)
	if err != nil {
		v.err = errors.Wrapf(err, "checking column %s.%s", table, column)
		return false
	}
	v.report.Columns = append(v.report.Columns, Check{Label: table + "." + column, Present: ok, Want: want})
	return ok
}

// hasColumn looks a column up without recording an expectation.
func (v *verifier) hasColumn(table, column string) bool {
	if v.err != nil {
		return false
	}
	ok, err := v.cat.ColumnExists(v.ctx, table, column)
	if err != nil {
		v.err = errors.Wrapf(err, "checking column %s.%s", table, column)
	}
	return ok
}

func (v *verifier) roles() {
	if v.err != nil {
		return
	}
	rcs, err := v.cat.RoleCounts(v.ctx)
	if err != nil {
		v.err = errors.Wrap(err, "counting roles")
		return
	}
	v.report.Roles = rcs
}

func (v *verifier) count(label, table, where string, violation bool) int {
	if v.err != nil {
		return 0
	}
	n, err := v.cat.CountRows(v.ctx, table, where)
	if err != nil {
		v.err = errors.Wrapf(err, "counting %s", label)
		return 0
	}
	v.report.Counts = append(v.report.Counts, Count{Label: label, Value: n, Violation: violation})
	return n
}

// nullCount counts live rows of table with column NULL, all of them when the
// column does not exist yet.
func (v *verifier) nullCount(label, table, column string, columnExists bool) {
	where := liveRows
	if columnExists {
		where += " AND " + column + " IS NULL"
	}
	v.count(label, table, where, true)
}

func (v *verifier) foreignKeys(table string) {
	if v.err != nil {
		return
	}
	fks, err := v.cat.ForeignKeys(v.ctx, table)
	if err != nil {
		v.err = errors.Wrapf(err, "listing foreign keys of %s", table)
		return
	}
	v.report.ForeignKeys = fks
}

func (v *verifier) preview(limit int) {
	if v.err != nil {
		return
	}
	rows, err := v.cat.ProjectPreview(v.ctx, limit)
	if err != nil {
		v.err = errors.Wrap(err, "previewing projects")
		return
	}
	v.report.Preview = rows
}

func (v *verifier) note(format string, args ...interface{}) {
	v.report.Notes = append(v.report.Notes, fmt.Sprintf(format, args...))
}

func (v *verifier) done() (*Report, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.report, nil
}
