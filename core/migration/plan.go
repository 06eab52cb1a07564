package migration

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

type (
	// Step is one guarded unit of a plan.
	Step struct {
		Name string
		// Skip returns why the step has nothing left to do, or "" when it must run.
		Skip func(f *Facts) string
		Run  func(ctx context.Context, x *Exec, f *Facts) error
	}

	Plan struct {
		Name  string
		Title string
		Probe func(ctx context.Context, cat Catalog) (*Facts, error)
		// Requires, when set, rejects probed schemas the steps cannot start from.
		Requires func(f *Facts) error
		Steps    []Step
		Verify   func(ctx context.Context, cat Catalog) (*Report, error)
	}
)

var (
	ErrUnknownPlan = errors.New("unknown migration plan")

	plans = map[string]*Plan{}
)

func register(p *Plan) *Plan {
	plans[p.Name] = p
	return p
}

// Lookup returns the registered plan called name.
func Lookup(name string) (*Plan, error) {
	if p, ok := plans[name]; ok {
		return p, nil
	}
	return nil, errors.Wrapf(ErrUnknownPlan, "%q", name)
}

func PlanNames() []string {
	names := make([]string, 0, len(plans))
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// prober accumulates facts, keeping the first catalog error.
type prober struct {
	ctx   context.Context
	cat   Catalog
	facts *Facts
	err   error
}

func newProber(ctx context.Context, cat Catalog) *prober {
	return &prober{ctx: ctx, cat: cat, facts: NewFacts()}
}

func (p *prober) table(key, table string, want bool) {
	if p.err != nil {
		return
	}
	ok, err := p.cat.TableExists(p.ctx, table)
	if err != nil {
		p.err = errors.Wrapf(err, "probing table %s", table)
		return
	}
	p.facts.Add(key, "table "+table, ok, want)
}

func (p *prober) column(key, table, column string, want bool) {
	if p.err != nil {
		return
	}
	ok, err := p.cat.ColumnExists(p.ctx, table, column)
	if err != nil {
		p.err = errors.Wrapf(err, "probing column %s.%s", table, column)
		return
	}
	p.facts.Add(key, "column "+table+"."+column, ok, want)
}

// notNull is true when the column exists and rejects NULL.
func (p *prober) notNull(key, table, column string, want bool) {
	if p.err != nil {
		return
	}
	col, ok, err := p.cat.DescribeColumn(p.ctx, table, column)
	if err != nil {
		p.err = errors.Wrapf(err, "describing column %s.%s", table, column)
		return
	}
	p.facts.Add(key, table+"."+column+" NOT NULL", ok && !col.Nullable, want)
}

// columnType is true when the column exists with exactly the given type.
func (p *prober) columnType(key, table, column, typ string, want bool) {
	if p.err != nil {
		return
	}
	col, ok, err := p.cat.DescribeColumn(p.ctx, table, column)
	if err != nil {
		p.err = errors.Wrapf(err, "describing column %s.%s", table, column)
		return
	}
	p.facts.Add(key, table+"."+column+" is "+typ, ok && normalizeType(col.Type) == normalizeType(typ), want)
}

// foreignKey is true when some foreign key of table covers column.
func (p *prober) foreignKey(key, table, column string, want bool) {
	if p.err != nil {
		return
	}
	fks, err := p.cat.ForeignKeys(p.ctx, table)
	if err != nil {
		p.err = errors.Wrapf(err, "listing foreign keys of %s", table)
		return
	}
	p.facts.Add(key, "foreign key on "+table+"."+column, hasForeignKey(fks, column), want)
}

func (p *prober) index(key, table, index string, want bool) {
	if p.err != nil {
		return
	}
	ok, err := p.cat.IndexExists(p.ctx, table, index)
	if err != nil {
		p.err = errors.Wrapf(err, "probing index %s.%s", table, index)
		return
	}
	p.facts.Add(key, "index "+table+"."+index, ok, want)
}

func (p *prober) role(key, role string, want bool) {
	if p.err != nil {
		return
	}
	p.facts.Add(key, "users with role "+role, p.cat.RoleExists(p.ctx, role), want)
}

func (p *prober) done() (*Facts, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.facts, nil
}

func hasForeignKey(fks []ForeignKey, column string) bool {
	for _, fk := range fks {
		if fk.Column == column {
			return true
		}
	}
	return false
}

// normalizeType lowers a declared type and strips spaces, so
// "ENUM('admin', 'tutor')" equals "enum('admin','tutor')".
func normalizeType(t string) string {
	out := make([]rune, 0, len(t))
	for _, r := range t {
		switch {
		case r == ' ':
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
