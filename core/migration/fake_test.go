package migration

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type (
	fakeColumn struct {
		typ      string
		nullable bool
	}

	fakeTable struct {
		columns map[string]*fakeColumn
		fks     map[string]ForeignKey
		indexes map[string]bool
	}

	fakeUser struct {
		id  int
		rol string
	}

	fakeProject struct {
		id           int
		titulo       string
		curso        int
		tutor        *int
		promocion    *int
		especialidad *int
		eliminado    bool
	}

	fakeCurso struct {
		promocion    int
		especialidad int
	}

	// fakeSession is an in-memory stand-in for the repository schema that
	// understands the statements the plans issue.
	fakeSession struct {
		tables      map[string]*fakeTable
		users       []fakeUser
		projects    []*fakeProject
		assignments [][2]int // {tutor, curso}
		cursos      map[int]fakeCurso
		grades      int

		execs   []string
		failOn  map[string]error // statement prefix -> error
		probeErr error
	}
)

func mysqlErr(n uint16) error {
	return &mysql.MySQLError{Number: n, Message: fmt.Sprintf("error %d", n)}
}

func intp(i int) *int { return &i }

func table(cols ...string) *fakeTable {
	t := &fakeTable{columns: map[string]*fakeColumn{}, fks: map[string]ForeignKey{}, indexes: map[string]bool{}}
	for _, c := range cols {
		t.columns[c] = &fakeColumn{typ: "int", nullable: false}
	}
	return t
}

// newLegacySession returns the pre-migration schema: docentes assigned through
// docente_curso and projects owned by a student within a course.
func newLegacySession() *fakeSession {
	usuarios := table("id", "nombre", "correo", "password", "rol")
	usuarios.columns["rol"].typ = "enum('admin','secretaria','docente','tutor','estudiante')"

	docenteCurso := table("id", "docente_id", "curso_id")
	docenteCurso.indexes["uq_docente_curso"] = true
	docenteCurso.fks["docente_curso_ibfk_1"] = ForeignKey{Name: "docente_curso_ibfk_1", Column: "docente_id", RefTable: "usuarios", RefColumn: "id"}

	estudianteCurso := table("id", "estudiante_id", "curso_id")

	proyectos := table("id", "estudiante_id", "curso_id", "titulo", "descripcion", "estado", "eliminado")
	proyectos.indexes["uq_proyecto_estudiante_curso"] = true
	proyectos.fks["proyectos_ibfk_1"] = ForeignKey{Name: "proyectos_ibfk_1", Column: "estudiante_id", RefTable: "usuarios", RefColumn: "id"}
	proyectos.fks["proyectos_ibfk_2"] = ForeignKey{Name: "proyectos_ibfk_2", Column: "curso_id", RefTable: "cursos", RefColumn: "id"}

	notas := table("id", "proyecto_id", "docente_id", "calificacion", "observaciones")
	notas.indexes["uq_nota_docente_proyecto"] = true
	notas.fks["notas_ibfk_1"] = ForeignKey{Name: "notas_ibfk_1", Column: "proyecto_id", RefTable: "proyectos", RefColumn: "id"}
	notas.fks["notas_ibfk_2"] = ForeignKey{Name: "notas_ibfk_2", Column: "docente_id", RefTable: "usuarios", RefColumn: "id"}

	return &fakeSession{
		tables: map[string]*fakeTable{
			"usuarios":         usuarios,
			"cursos":           table("id", "nombre", "paralelo", "promocion_id", "especialidad_id"),
			"promociones":      table("id", "anio", "descripcion"),
			"especialidades":   table("id", "nombre"),
			"docente_curso":    docenteCurso,
			"estudiante_curso": estudianteCurso,
			"proyectos":        proyectos,
			"notas":            notas,
		},
		users: []fakeUser{
			{1, "admin"}, {2, "secretaria"}, {5, "docente"}, {6, "docente"},
		},
		projects: []*fakeProject{
			{id: 1, titulo: "Proyecto Final IA", curso: 1},
			{id: 2, titulo: "Proyecto Final CA", curso: 2},
		},
		assignments: [][2]int{{5, 1}},
		cursos:      map[int]fakeCurso{1: {promocion: 1, especialidad: 1}, 2: {promocion: 1, especialidad: 2}},
		grades:      3,
		failOn:      map[string]error{},
	}
}

// Catalog

func (s *fakeSession) TableExists(_ context.Context, name string) (bool, error) {
	if s.probeErr != nil {
		return false, s.probeErr
	}
	_, ok := s.tables[name]
	return ok, nil
}

func (s *fakeSession) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	_, ok, err := s.DescribeColumn(ctx, table, column)
	return ok, err
}

func (s *fakeSession) DescribeColumn(_ context.Context, table, column string) (Column, bool, error) {
	if s.probeErr != nil {
		return Column{}, false, s.probeErr
	}
	t, ok := s.tables[table]
	if !ok {
		return Column{}, false, nil
	}
	c, ok := t.columns[column]
	if !ok {
		return Column{}, false, nil
	}
	return Column{Name: column, Type: c.typ, Nullable: c.nullable}, true, nil
}

func (s *fakeSession) RoleExists(_ context.Context, role string) bool {
	for _, u := range s.users {
		if u.rol == role {
			return true
		}
	}
	return false
}

func (s *fakeSession) ForeignKeys(_ context.Context, table string) ([]ForeignKey, error) {
	t, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	out := make([]ForeignKey, 0, len(t.fks))
	for _, fk := range t.fks {
		out = append(out, fk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeSession) IndexExists(_ context.Context, table, index string) (bool, error) {
	t, ok := s.tables[table]
	return ok && t.indexes[index], nil
}

func (s *fakeSession) RoleCounts(_ context.Context) ([]RoleCount, error) {
	counts := map[string]int{}
	for _, u := range s.users {
		counts[u.rol]++
	}
	out := make([]RoleCount, 0, len(counts))
	for rol, n := range counts {
		out = append(out, RoleCount{Rol: rol, Total: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rol < out[j].Rol })
	return out, nil
}

func (s *fakeSession) CountRows(_ context.Context, table, where string) (int, error) {
	switch table {
	case "notas":
		return s.grades, nil
	case "proyectos":
	default:
		return 0, fmt.Errorf("fake: count on %s not supported", table)
	}
	var n int
	for _, p := range s.projects {
		var match bool
		switch where {
		case "eliminado = 0":
			match = !p.eliminado
		case "tutor_id IS NULL":
			match = p.tutor == nil
		case "eliminado = 0 AND tutor_id IS NULL":
			match = !p.eliminado && p.tutor == nil
		case "eliminado = 0 AND promocion_id IS NULL":
			match = !p.eliminado && p.promocion == nil
		case "eliminado = 0 AND especialidad_id IS NULL":
			match = !p.eliminado && p.especialidad == nil
		default:
			return 0, fmt.Errorf("fake: unsupported where %q", where)
		}
		if match {
			n++
		}
	}
	return n, nil
}

func (s *fakeSession) ProjectPreview(_ context.Context, limit int) ([]ProjectPreview, error) {
	var out []ProjectPreview
	for i := len(s.projects) - 1; i >= 0 && len(out) < limit; i-- {
		p := s.projects[i]
		pp := ProjectPreview{ID: p.id, Titulo: p.titulo}
		if p.promocion != nil {
			pp.Promocion = fmt.Sprint(2026)
		}
		if p.especialidad != nil {
			pp.Especialidad = fmt.Sprint(*p.especialidad)
		}
		out = append(out, pp)
	}
	return out, nil
}

// Exec

var (
	reAddColumn  = regexp.MustCompile(`^ALTER TABLE (\w+) ADD COLUMN (\w+) INT (NULL|NOT NULL)`)
	reDropColumn = regexp.MustCompile(`^ALTER TABLE (\w+) DROP COLUMN (\w+)$`)
	reDropKey    = regexp.MustCompile(`^ALTER TABLE (\w+) DROP KEY (\w+)$`)
	reAddUnique  = regexp.MustCompile(`^ALTER TABLE (\w+) ADD UNIQUE KEY (\w+) \(`)
	reDropFK     = regexp.MustCompile(`^ALTER TABLE (\w+) DROP FOREIGN KEY (\w+)$`)
	reAddFK      = regexp.MustCompile(`^ALTER TABLE (\w+) ADD CONSTRAINT (\w+) FOREIGN KEY \((\w+)\) REFERENCES (\w+)\((\w+)\)`)
	reChange     = regexp.MustCompile(`^ALTER TABLE (\w+) CHANGE (\w+) (\w+) INT NOT NULL$`)
	reModify     = regexp.MustCompile(`^ALTER TABLE (\w+) MODIFY COLUMN (\w+) (.+)$`)
	reRename     = regexp.MustCompile(`^RENAME TABLE (\w+) TO (\w+)$`)
	reDropTable  = regexp.MustCompile(`^DROP TABLE IF EXISTS (\w+)$`)
)

func (s *fakeSession) Exec(_ context.Context, stmt string) (int64, error) {
	stmt = oneLine(stmt)
	s.execs = append(s.execs, stmt)
	for prefix, err := range s.failOn {
		if strings.HasPrefix(stmt, prefix) {
			return 0, err
		}
	}

	if m := reAddColumn.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if _, ok := t.columns[m[2]]; ok {
			return 0, mysqlErr(ErDupFieldName)
		}
		t.columns[m[2]] = &fakeColumn{typ: "int", nullable: m[3] == "NULL"}
		return 0, nil
	}
	if m := reDropColumn.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if _, ok := t.columns[m[2]]; !ok {
			return 0, mysqlErr(ErCantDropFieldKey)
		}
		for _, fk := range t.fks {
			if fk.Column == m[2] {
				return 0, mysqlErr(1828) // column needed in a foreign key constraint
			}
		}
		delete(t.columns, m[2])
		return 0, nil
	}
	if m := reDropKey.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if !t.indexes[m[2]] {
			return 0, mysqlErr(ErCantDropFieldKey)
		}
		delete(t.indexes, m[2])
		return 0, nil
	}
	if m := reAddUnique.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if t.indexes[m[2]] {
			return 0, mysqlErr(ErDupKeyName)
		}
		t.indexes[m[2]] = true
		return 0, nil
	}
	if m := reDropFK.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if _, ok := t.fks[m[2]]; !ok {
			return 0, mysqlErr(ErCantDropFieldKey)
		}
		delete(t.fks, m[2])
		return 0, nil
	}
	if m := reAddFK.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if _, ok := t.fks[m[2]]; ok {
			return 0, mysqlErr(1826) // duplicate foreign key constraint name
		}
		t.fks[m[2]] = ForeignKey{Name: m[2], Column: m[3], RefTable: m[4], RefColumn: m[5]}
		return 0, nil
	}
	if m := reChange.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		c, ok := t.columns[m[2]]
		if !ok {
			return 0, mysqlErr(ErBadField)
		}
		delete(t.columns, m[2])
		c.nullable = false
		t.columns[m[3]] = c
		for name, fk := range t.fks {
			if fk.Column == m[2] {
				fk.Column = m[3]
				t.fks[name] = fk
			}
		}
		return 0, nil
	}
	if m := reModify.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		c, ok := t.columns[m[2]]
		if !ok {
			return 0, mysqlErr(ErBadField)
		}
		switch {
		case m[1] == "usuarios" && m[2] == "rol":
			for _, u := range s.users {
				if u.rol != "admin" && u.rol != "tutor" {
					return 0, mysqlErr(1265) // data truncated
				}
			}
			c.typ = "enum('admin','tutor')"
			c.nullable = false
		case m[1] == "proyectos" && m[2] == "tutor_id":
			for _, p := range s.projects {
				if p.tutor == nil {
					return 0, mysqlErr(1138) // invalid use of NULL
				}
			}
			c.nullable = false
		default:
			return 0, fmt.Errorf("fake: unsupported modify %q", stmt)
		}
		return 0, nil
	}
	if m := reRename.FindStringSubmatch(stmt); m != nil {
		t, err := s.table(m[1])
		if err != nil {
			return 0, err
		}
		if _, ok := s.tables[m[2]]; ok {
			return 0, mysqlErr(1050) // table already exists
		}
		delete(s.tables, m[1])
		s.tables[m[2]] = t
		return 0, nil
	}
	if m := reDropTable.FindStringSubmatch(stmt); m != nil {
		delete(s.tables, m[1])
		return 0, nil
	}

	switch stmt {
	case "UPDATE usuarios SET rol = 'tutor' WHERE rol = 'docente'":
		return s.remapRole("docente", "tutor"), nil
	case "UPDATE usuarios SET rol = 'admin' WHERE rol IN ('admin', 'secretaria')":
		return s.remapRole("secretaria", "admin"), nil
	case "UPDATE proyectos p SET p.tutor_id = (SELECT tc.tutor_id FROM tutor_curso tc WHERE tc.curso_id = p.curso_id LIMIT 1) WHERE p.tutor_id IS NULL":
		if _, ok := s.tables["tutor_curso"]; !ok {
			return 0, mysqlErr(ErNoSuchTable)
		}
		var n int64
		for _, p := range s.projects {
			if p.tutor != nil {
				continue
			}
			for _, a := range s.assignments {
				if a[1] == p.curso {
					p.tutor = intp(a[0])
					n++
					break
				}
			}
		}
		return n, nil
	case "UPDATE proyectos p SET p.tutor_id = (SELECT u.id FROM usuarios u WHERE u.rol IN ('admin', 'tutor') ORDER BY u.id LIMIT 1) WHERE p.tutor_id IS NULL":
		var def *int
		ids := make([]int, 0, len(s.users))
		for _, u := range s.users {
			if u.rol == "admin" || u.rol == "tutor" {
				ids = append(ids, u.id)
			}
		}
		if len(ids) > 0 {
			sort.Ints(ids)
			def = intp(ids[0])
		}
		var n int64
		for _, p := range s.projects {
			if p.tutor == nil && def != nil {
				p.tutor = intp(*def)
				n++
			}
		}
		return n, nil
	case "UPDATE proyectos p JOIN cursos c ON c.id = p.curso_id SET p.promocion_id = c.promocion_id, p.especialidad_id = c.especialidad_id WHERE p.promocion_id IS NULL OR p.especialidad_id IS NULL":
		var n int64
		for _, p := range s.projects {
			if c, ok := s.cursos[p.curso]; ok && (p.promocion == nil || p.especialidad == nil) {
				p.promocion, p.especialidad = intp(c.promocion), intp(c.especialidad)
				n++
			}
		}
		return n, nil
	}
	return 0, fmt.Errorf("fake: unsupported statement %q", stmt)
}

func (s *fakeSession) table(name string) (*fakeTable, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, mysqlErr(ErNoSuchTable)
	}
	return t, nil
}

func (s *fakeSession) remapRole(from, to string) int64 {
	var n int64
	for i := range s.users {
		if s.users[i].rol == from {
			s.users[i].rol = to
			n++
		}
	}
	return n
}

func (s *fakeSession) tutorOf(projectID int) *int {
	for _, p := range s.projects {
		if p.id == projectID {
			return p.tutor
		}
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
