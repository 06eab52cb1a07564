package database

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/migration"
)

var identRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Session implements migration.Session over a single connection.
type Session struct {
	exec core.DBExecutor
}

var _ migration.Session = (*Session)(nil)

func NewSession(exec core.DBExecutor) *Session {
	return &Session{exec: exec}
}

// describeRow is one row of DESCRIBE <table>.
type describeRow struct {
	Field   string         `db:"Field"`
	Type    string         `db:"Type"`
	Null    string         `db:"Null"`
	Key     string         `db:"Key"`
	Default sql.NullString `db:"Default"`
	Extra   string         `db:"Extra"`
}

func quoteIdent(name string) (string, error) {
	if !identRegex.MatchString(name) {
		return "", errors.Errorf("invalid identifier %q", name)
	}
	return "`" + name + "`", nil
}

func (s *Session) TableExists(ctx context.Context, table string) (bool, error) {
	var names []string
	if err := s.exec.SelectContext(ctx, &names, "SHOW TABLES"); err != nil {
		return false, errors.Wrap(err, "listing tables")
	}
	for _, name := range names {
		if name == table {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	_, ok, err := s.DescribeColumn(ctx, table, column)
	return ok, err
}

func (s *Session) DescribeColumn(ctx context.Context, table, column string) (migration.Column, bool, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return migration.Column{}, false, err
	}
	var rows []describeRow
	if err := s.exec.SelectContext(ctx, &rows, "DESCRIBE "+ident); err != nil {
		if migration.IsNoSuchTable(err) {
			return migration.Column{}, false, nil
		}
		return migration.Column{}, false, errors.Wrapf(err, "describing %s", table)
	}
	for _, row := range rows {
		if row.Field == column {
			return migration.Column{Name: row.Field, Type: row.Type, Nullable: row.Null == "YES"}, true, nil
		}
	}
	return migration.Column{}, false, nil
}

func (s *Session) RoleExists(ctx context.Context, role string) bool {
	var n int
	if err := s.exec.GetContext(ctx, &n, "SELECT COUNT(*) FROM usuarios WHERE rol = ?", role); err != nil {
		return false
	}
	return n > 0
}

func (s *Session) ForeignKeys(ctx context.Context, table string) ([]migration.ForeignKey, error) {
	fks := make([]migration.ForeignKey, 0)
	q := `SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`
	if err := s.exec.SelectContext(ctx, &fks, q, table); err != nil {
		return nil, errors.Wrapf(err, "listing foreign keys of %s", table)
	}
	return fks, nil
}

func (s *Session) IndexExists(ctx context.Context, table, index string) (bool, error) {
	var n int
	q := `SELECT COUNT(*) FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?`
	if err := s.exec.GetContext(ctx, &n, q, table, index); err != nil {
		return false, errors.Wrapf(err, "looking up index %s.%s", table, index)
	}
	return n > 0, nil
}

func (s *Session) RoleCounts(ctx context.Context) ([]migration.RoleCount, error) {
	counts := make([]migration.RoleCount, 0)
	if err := s.exec.SelectContext(ctx, &counts, "SELECT rol, COUNT(*) AS total FROM usuarios GROUP BY rol ORDER BY rol"); err != nil {
		return nil, errors.Wrap(err, "counting roles")
	}
	return counts, nil
}

// CountRows counts the rows of table matching where, all rows when where is empty.
// where is a fixed SQL fragment, never user input.
func (s *Session) CountRows(ctx context.Context, table, where string) (int, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	q := "SELECT COUNT(*) FROM " + ident
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := s.exec.GetContext(ctx, &n, q); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return n, nil
}

func (s *Session) ProjectPreview(ctx context.Context, limit int) ([]migration.ProjectPreview, error) {
	rows := make([]migration.ProjectPreview, 0, limit)
	q := `SELECT p.id, p.titulo,
	COALESCE(CAST(pr.anio AS CHAR), '') AS promocion,
	COALESCE(e.nombre, '') AS especialidad,
	COALESCE(u.nombre, '') AS tutor
FROM proyectos p
LEFT JOIN promociones pr ON pr.id = p.promocion_id
LEFT JOIN especialidades e ON e.id = p.especialidad_id
LEFT JOIN usuarios u ON u.id = p.tutor_id
WHERE p.eliminado = 0
ORDER BY p.id DESC
LIMIT ?`
	if err := s.exec.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "previewing projects")
	}
	return rows, nil
}

func (s *Session) Exec(ctx context.Context, stmt string) (int64, error) {
	res, err := s.exec.ExecContext(ctx, stmt)
	if err != nil {
		// unwrapped: the classifier inspects the driver error
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
