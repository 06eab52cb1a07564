// Package migration reconciles the live repository schema with its target shape.
//
// A Plan probes the database into Facts, runs its ordered Steps (each guarded by
// those facts, so re-runs only apply what is missing) and finishes with a
// verification Report. Statement failures go through Classify: a closed set of
// MySQL error numbers meaning "already applied" is tolerated, anything else
// aborts the run. Nothing is wrapped in a transaction.
package migration

import (
	"context"
)

type (
	// Catalog answers read-only questions about the current schema and data.
	Catalog interface {
		// TableExists reports whether table is listed by SHOW TABLES.
		TableExists(ctx context.Context, table string) (bool, error)
		// ColumnExists is false, without error, when the table itself is missing.
		ColumnExists(ctx context.Context, table, column string) (bool, error)
		DescribeColumn(ctx context.Context, table, column string) (Column, bool, error)
		// RoleExists is false when the lookup fails.
		RoleExists(ctx context.Context, role string) bool
		ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
		IndexExists(ctx context.Context, table, index string) (bool, error)
		RoleCounts(ctx context.Context) ([]RoleCount, error)
		CountRows(ctx context.Context, table, where string) (int, error)
		ProjectPreview(ctx context.Context, limit int) ([]ProjectPreview, error)
	}

	// Session is the single connection a run works on.
	Session interface {
		Catalog

		Exec(ctx context.Context, stmt string) (int64, error)
	}
)

type (
	Column struct {
		Name     string
		Type     string
		Nullable bool
	}

	ForeignKey struct {
		Name      string `db:"CONSTRAINT_NAME"`
		Column    string `db:"COLUMN_NAME"`
		RefTable  string `db:"REFERENCED_TABLE_NAME"`
		RefColumn string `db:"REFERENCED_COLUMN_NAME"`
	}

	RoleCount struct {
		Rol   string `db:"rol"`
		Total int    `db:"total"`
	}

	ProjectPreview struct {
		ID           int    `db:"id"`
		Titulo       string `db:"titulo"`
		Promocion    string `db:"promocion"`
		Especialidad string `db:"especialidad"`
		Tutor        string `db:"tutor"`
	}
)

// Fact is one probed boolean together with the value the target shape expects.
type Fact struct {
	Key   string
	Label string
	Value bool
	Want  bool
}

func (f Fact) OK() bool { return f.Value == f.Want }

// Facts is the ordered snapshot a plan's steps are guarded by.
// Steps update it as they apply changes so later guards see the new shape.
type Facts struct {
	list []Fact
	idx  map[string]int
}

func NewFacts() *Facts {
	return &Facts{idx: make(map[string]int)}
}

func (fs *Facts) Add(key, label string, value, want bool) {
	if i, ok := fs.idx[key]; ok {
		fs.list[i] = Fact{Key: key, Label: label, Value: value, Want: want}
		return
	}
	fs.idx[key] = len(fs.list)
	fs.list = append(fs.list, Fact{Key: key, Label: label, Value: value, Want: want})
}

// Has returns the value of key; unknown keys are false.
func (fs *Facts) Has(key string) bool {
	if i, ok := fs.idx[key]; ok {
		return fs.list[i].Value
	}
	return false
}

func (fs *Facts) Set(key string, value bool) {
	if i, ok := fs.idx[key]; ok {
		fs.list[i].Value = value
	}
}

func (fs *Facts) List() []Fact {
	out := make([]Fact, len(fs.list))
	copy(out, fs.list)
	return out
}

// Pending counts the facts that differ from the target shape.
func (fs *Facts) Pending() int {
	var n int
	for _, f := range fs.list {
		if !f.OK() {
			n++
		}
	}
	return n
}
