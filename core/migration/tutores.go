package migration

import (
	"context"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core/user"
)

// liveRows filters out soft-deleted rows.
const liveRows = "eliminado = 0"

const narrowedRoleType = "enum('admin','tutor')"

const (
	factTutorCurso          = "table.tutor_curso"
	factDocenteCurso        = "table.docente_curso"
	factEstudianteCurso     = "table.estudiante_curso"
	factProyectosTutor      = "proyectos.tutor_id"
	factProyectosTutorReq   = "proyectos.tutor_id.not_null"
	factProyectosTutorFK    = "proyectos.tutor_id.fk"
	factProyectosEstudiante = "proyectos.estudiante_id"
	factNotasTutor          = "notas.tutor_id"
	factNotasDocente        = "notas.docente_id"
	factRoleDocente         = "role.docente"
	factRoleSecretaria      = "role.secretaria"
	factRoleEstudiante      = "role.estudiante"
	factRolNarrowed         = "usuarios.rol.narrowed"
)

// Tutores replaces teachers and students by tutors: roles are consolidated,
// docente_curso becomes tutor_curso and projects and grades are owned by a tutor.
var Tutores = register(&Plan{
	Name:  "tutores",
	Title: "docentes/estudiantes -> tutores",
	Probe: probeTutores,
	Steps: []Step{
		{Name: "role consolidation", Skip: skipRoles, Run: consolidateRoles},
		{Name: "assignment table rename", Skip: skipAssignmentRename, Run: renameAssignmentTable},
		{Name: "project tutor column", Skip: skipProjectTutor, Run: addProjectTutor},
		{Name: "project student column removal", Skip: skipProjectStudent, Run: dropProjectStudent},
		{Name: "grade tutor column", Skip: skipGradeTutor, Run: renameGradeTutor},
		{Name: "student assignment table removal", Skip: skipStudentAssignment, Run: dropStudentAssignment},
	},
	Verify: verifyTutores,
})

func probeTutores(ctx context.Context, cat Catalog) (*Facts, error) {
	p := newProber(ctx, cat)
	p.table(factTutorCurso, "tutor_curso", true)
	p.table(factDocenteCurso, "docente_curso", false)
	p.table(factEstudianteCurso, "estudiante_curso", false)
	p.column(factProyectosTutor, "proyectos", "tutor_id", true)
	p.notNull(factProyectosTutorReq, "proyectos", "tutor_id", true)
	p.foreignKey(factProyectosTutorFK, "proyectos", "tutor_id", true)
	p.column(factProyectosEstudiante, "proyectos", "estudiante_id", false)
	p.column(factNotasTutor, "notas", "tutor_id", true)
	p.column(factNotasDocente, "notas", "docente_id", false)
	p.role(factRoleDocente, user.RoleDocente, false)
	p.role(factRoleSecretaria, user.RoleSecretaria, false)
	p.role(factRoleEstudiante, user.RoleEstudiante, false)
	p.columnType(factRolNarrowed, "usuarios", "rol", narrowedRoleType, true)
	return p.done()
}

// 1. roles

func skipRoles(f *Facts) string {
	if !f.Has(factRoleDocente) && !f.Has(factRoleSecretaria) && f.Has(factRolNarrowed) {
		return "roles already consolidated"
	}
	return ""
}

func consolidateRoles(ctx context.Context, x *Exec, f *Facts) error {
	if f.Has(factRoleDocente) {
		if err := x.Apply(ctx, "UPDATE usuarios SET rol = 'tutor' WHERE rol = 'docente'"); err != nil {
			return err
		}
		f.Set(factRoleDocente, false)
	}
	if f.Has(factRoleSecretaria) {
		if err := x.Apply(ctx, "UPDATE usuarios SET rol = 'admin' WHERE rol IN ('admin', 'secretaria')"); err != nil {
			return err
		}
		f.Set(factRoleSecretaria, false)
	}
	if f.Has(factRolNarrowed) {
		return nil
	}
	if f.Has(factRoleEstudiante) {
		x.Warn("users with role estudiante remain: usuarios.rol is not narrowed until they are reviewed")
		return nil
	}
	if err := x.Apply(ctx, "ALTER TABLE usuarios MODIFY COLUMN rol ENUM('admin','tutor') NOT NULL"); err != nil {
		return err
	}
	f.Set(factRolNarrowed, true)
	return nil
}

// 2. docente_curso -> tutor_curso

func skipAssignmentRename(f *Facts) string {
	switch {
	case f.Has(factTutorCurso):
		return "tutor_curso already exists"
	case !f.Has(factDocenteCurso):
		return "no docente_curso table to rename"
	}
	return ""
}

func renameAssignmentTable(ctx context.Context, x *Exec, f *Facts) error {
	for _, stmt := range []string{
		"RENAME TABLE docente_curso TO tutor_curso",
		"ALTER TABLE tutor_curso CHANGE docente_id tutor_id INT NOT NULL",
		"ALTER TABLE tutor_curso DROP KEY uq_docente_curso",
		"ALTER TABLE tutor_curso ADD UNIQUE KEY uq_tutor_curso (tutor_id, curso_id)",
	} {
		if err := x.Apply(ctx, stmt); err != nil {
			return err
		}
	}
	f.Set(factDocenteCurso, false)
	f.Set(factTutorCurso, true)
	return nil
}

// 3. proyectos.tutor_id

func skipProjectTutor(f *Facts) string {
	if f.Has(factProyectosTutor) && f.Has(factProyectosTutorReq) && f.Has(factProyectosTutorFK) {
		return "proyectos.tutor_id already in place"
	}
	return ""
}

// addProjectTutor guards each sub-operation so a run interrupted halfway
// through this step completes it on the next run.
func addProjectTutor(ctx context.Context, x *Exec, f *Facts) error {
	if !f.Has(factProyectosTutor) {
		if err := x.Apply(ctx, "ALTER TABLE proyectos ADD COLUMN tutor_id INT NULL AFTER curso_id"); err != nil {
			return err
		}
		f.Set(factProyectosTutor, true)
	}

	if !f.Has(factProyectosTutorReq) {
		if f.Has(factTutorCurso) {
			if err := x.Apply(ctx, `UPDATE proyectos p
SET p.tutor_id = (SELECT tc.tutor_id FROM tutor_curso tc WHERE tc.curso_id = p.curso_id LIMIT 1)
WHERE p.tutor_id IS NULL`); err != nil {
				return err
			}
		} else {
			x.Note("no tutor_curso table: every project gets the default tutor")
		}
		if err := x.Apply(ctx, `UPDATE proyectos p
SET p.tutor_id = (SELECT u.id FROM usuarios u WHERE u.rol IN ('admin', 'tutor') ORDER BY u.id LIMIT 1)
WHERE p.tutor_id IS NULL`); err != nil {
			return err
		}
		if !x.DryRun() {
			n, err := x.Catalog().CountRows(ctx, "proyectos", "tutor_id IS NULL")
			if err != nil {
				return errors.Wrap(err, "counting projects without tutor")
			}
			if n > 0 {
				return errors.Wrapf(ErrUnassignedProjects, "%d projects, no admin or tutor account found", n)
			}
		}
		if err := x.Apply(ctx, "ALTER TABLE proyectos MODIFY COLUMN tutor_id INT NOT NULL"); err != nil {
			return err
		}
		f.Set(factProyectosTutorReq, true)
	}

	if !f.Has(factProyectosTutorFK) {
		if err := x.Apply(ctx, `ALTER TABLE proyectos
ADD CONSTRAINT fk_proyectos_tutor FOREIGN KEY (tutor_id) REFERENCES usuarios(id)
ON DELETE RESTRICT ON UPDATE CASCADE`); err != nil {
			return err
		}
		f.Set(factProyectosTutorFK, true)
	}
	return nil
}

// 4. proyectos.estudiante_id

func skipProjectStudent(f *Facts) string {
	if !f.Has(factProyectosEstudiante) {
		return "proyectos.estudiante_id already removed"
	}
	return ""
}

func dropProjectStudent(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.DropForeignKeys(ctx, "proyectos", "estudiante_id"); err != nil {
		return err
	}
	// the unique key goes before the column: MySQL would otherwise shrink it to (curso_id)
	for _, stmt := range []string{
		"ALTER TABLE proyectos DROP KEY uq_proyecto_estudiante_curso",
		"ALTER TABLE proyectos DROP COLUMN estudiante_id",
		"ALTER TABLE proyectos ADD UNIQUE KEY uq_proyecto_titulo_curso (titulo, curso_id)",
	} {
		if err := x.Apply(ctx, stmt); err != nil {
			return err
		}
	}
	f.Set(factProyectosEstudiante, false)
	return nil
}

// 5. notas.docente_id -> notas.tutor_id

func skipGradeTutor(f *Facts) string {
	switch {
	case f.Has(factNotasTutor):
		return "notas.tutor_id already exists"
	case !f.Has(factNotasDocente):
		return "no notas.docente_id column to rename"
	}
	return ""
}

func renameGradeTutor(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.DropForeignKeys(ctx, "notas", "docente_id"); err != nil {
		return err
	}
	for _, stmt := range []string{
		"ALTER TABLE notas CHANGE docente_id tutor_id INT NOT NULL",
		`ALTER TABLE notas
ADD CONSTRAINT fk_notas_tutor FOREIGN KEY (tutor_id) REFERENCES usuarios(id)
ON DELETE RESTRICT ON UPDATE CASCADE`,
		"ALTER TABLE notas DROP KEY uq_nota_docente_proyecto",
		"ALTER TABLE notas ADD UNIQUE KEY uq_nota_tutor_proyecto (proyecto_id, tutor_id)",
	} {
		if err := x.Apply(ctx, stmt); err != nil {
			return err
		}
	}
	f.Set(factNotasDocente, false)
	f.Set(factNotasTutor, true)
	return nil
}

// 6. estudiante_curso

func skipStudentAssignment(f *Facts) string {
	if !f.Has(factEstudianteCurso) {
		return "estudiante_curso already removed"
	}
	return ""
}

func dropStudentAssignment(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.Apply(ctx, "DROP TABLE IF EXISTS estudiante_curso"); err != nil {
		return err
	}
	f.Set(factEstudianteCurso, false)
	return nil
}

func verifyTutores(ctx context.Context, cat Catalog) (*Report, error) {
	v := newVerifier(ctx, cat, "tutores")
	// once cursos has run, tutor_curso and proyectos.curso_id are gone for good
	classified := v.hasColumn("proyectos", "promocion_id")
	if !classified {
		v.table("tutor_curso", true)
	}
	v.table("docente_curso", false)
	v.table("estudiante_curso", false)
	v.table("usuarios", true)
	v.table("proyectos", true)
	v.table("notas", true)

	hasTutor := v.column("proyectos", "tutor_id", true)
	v.column("proyectos", "estudiante_id", false)
	if !classified {
		v.column("proyectos", "curso_id", true)
	}
	v.column("proyectos", "titulo", true)
	v.column("notas", "tutor_id", true)
	v.column("notas", "docente_id", false)
	v.column("notas", "proyecto_id", true)

	v.roles()
	v.count("active projects", "proyectos", liveRows, false)
	v.nullCount("projects without tutor", "proyectos", "tutor_id", hasTutor)
	v.count("grades", "notas", "", false)
	return v.done()
}
