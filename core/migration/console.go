package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/labstack/gommon/color"

	"github.com/repoacademico/repositorio/core/user"
)

const rule = "=================================================="

// console renders human progress. Colors are dropped unless out is a terminal.
type console struct {
	out io.Writer
	c   *color.Color
}

func newConsole(out io.Writer) *console {
	c := color.New()
	c.SetOutput(out)
	return &console{out: out, c: c}
}

func (con *console) println(s string) {
	_, _ = fmt.Fprintln(con.out, s)
}

func (con *console) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(con.out, format, args...)
}

func (con *console) header(title, runID string, dryRun bool) {
	con.println(con.c.Cyan(rule))
	con.println(con.c.Cyan("MIGRATION: " + title))
	con.println(con.c.Cyan("run " + runID))
	if dryRun {
		con.println(con.c.Yellow("DRY RUN: no statement will be executed"))
	}
	con.println(con.c.Cyan(rule))
}

func (con *console) statusHeader(title string) {
	con.println(con.c.Cyan(rule))
	con.println(con.c.Cyan("STATUS: " + title))
	con.println(con.c.Cyan(rule))
}

func (con *console) facts(fs *Facts) {
	con.println("\ncurrent state:")
	for _, f := range fs.List() {
		mark := con.c.Green("ok  ")
		if !f.OK() {
			mark = con.c.Yellow("todo")
		}
		con.printf("  [%s] %s: %s\n", mark, f.Label, yesNo(f.Value))
	}
	if n := fs.Pending(); n > 0 {
		con.printf("  %d pending\n", n)
	}
}

func (con *console) stepStart(n, total int, name string) {
	con.printf("\n%s %s\n", con.c.Bold(fmt.Sprintf("[%d/%d]", n, total)), name)
}

func (con *console) stepSkipped(reason string) {
	con.printf("  %s %s\n", con.c.Grey("skip"), reason)
}

func (con *console) applied(stmt string) {
	con.printf("  %s %s\n", con.c.Green("done"), firstLine(stmt))
}

func (con *console) planned(stmt string) {
	con.printf("  %s %s\n", con.c.Blue("plan"), oneLine(stmt))
}

func (con *console) benign(stmt, code, meaning string) {
	con.printf("  %s %s: skipped, already applied (%s, %s)\n", con.c.Yellow("skip"), firstLine(stmt), code, meaning)
}

func (con *console) note(msg string) {
	con.printf("  %s %s\n", con.c.Blue("info"), msg)
}

func (con *console) warn(msg string) {
	con.printf("  %s %s\n", con.c.Yellow("warn"), msg)
}

func (con *console) failed(err *StepError) {
	con.printf("  %s %v\n", con.c.Red("fail"), err.Err)
	if err.Code != "" {
		con.printf("       code: %s\n", err.Code)
	}
	if err.Statement != "" {
		con.printf("       statement: %s\n", oneLine(err.Statement))
	}
}

func (con *console) failedPrecondition(err error) {
	con.println("")
	con.printf("%s %v\n", con.c.Red("NOT STARTED:"), err)
}

func (con *console) verdict(res *Result) {
	con.println("\n" + rule)
	switch {
	case res.DryRun:
		con.println(con.c.Blue(fmt.Sprintf("DRY RUN: %d statements planned", res.Changes)))
	case res.UpToDate():
		con.println(con.c.Green("DATABASE ALREADY UP TO DATE"))
	default:
		con.println(con.c.Green(fmt.Sprintf("MIGRATION COMPLETED: %d changes applied", res.Changes)))
	}
	if res.Skipped > 0 {
		con.printf("%d statements skipped as already applied\n", res.Skipped)
	}
	con.println(rule)
}

func (con *console) report(r *Report) {
	con.println("\nverification:")
	if len(r.Tables) > 0 {
		con.println("  tables")
		for _, c := range r.Tables {
			con.check(c)
		}
	}
	if len(r.Columns) > 0 {
		con.println("  columns")
		for _, c := range r.Columns {
			con.check(c)
		}
	}
	if len(r.Roles) > 0 {
		con.println("  roles")
		for _, rc := range r.Roles {
			line := fmt.Sprintf("    %s: %d", rc.Rol, rc.Total)
			if user.IsValidRole(rc.Rol) {
				con.println(con.c.Green(line))
			} else {
				con.println(con.c.Red(line + " (unexpected)"))
			}
		}
	}
	if len(r.Counts) > 0 {
		con.println("  data")
		for _, c := range r.Counts {
			line := fmt.Sprintf("    %s: %d", c.Label, c.Value)
			if c.OK() {
				con.println(line)
			} else {
				con.println(con.c.Red(line + " (needs attention)"))
			}
		}
	}
	if r.Plan == "cursos" {
		con.println("  foreign keys of proyectos")
		if len(r.ForeignKeys) == 0 {
			con.println("    none")
		}
		for _, fk := range r.ForeignKeys {
			con.printf("    %s: %s -> %s(%s)\n", fk.Name, fk.Column, fk.RefTable, fk.RefColumn)
		}
	}
	if len(r.Preview) > 0 {
		con.println("  latest projects")
		for _, p := range r.Preview {
			con.printf("    #%d %s | %s | %s | %s\n", p.ID, p.Titulo,
				orDefault(p.Promocion, "no promotion"), orDefault(p.Especialidad, "no specialty"), orDefault(p.Tutor, "no tutor"))
		}
	}
	for _, n := range r.Notes {
		con.note(n)
	}

	con.println("")
	if r.FullyMigrated() {
		con.println(con.c.Green("FULLY MIGRATED"))
		return
	}
	con.println(con.c.Red("NOT FULLY MIGRATED"))
	for _, p := range r.Problems() {
		con.println(con.c.Red("  - " + p))
	}
}

func (con *console) check(c Check) {
	state := "present"
	if !c.Present {
		state = "absent"
	}
	line := fmt.Sprintf("    %s: %s", c.Label, state)
	if c.OK() {
		con.println(con.c.Green(line))
	} else {
		con.println(con.c.Yellow(line + " (unexpected)"))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
