package migration

import (
	"context"

	"github.com/pkg/errors"
)

// ErrTutoresRequired is returned when the cursos plan finds projects that are
// not yet owned by a tutor.
var ErrTutoresRequired = errors.New("proyectos.tutor_id is missing, run the tutores plan first")

const (
	factProyectosPromocion    = "proyectos.promocion_id"
	factProyectosEspecialidad = "proyectos.especialidad_id"
	factProyectosPromocionFK  = "proyectos.promocion_id.fk"
	factProyectosEspecialFK   = "proyectos.especialidad_id.fk"
	factProyectosCurso        = "proyectos.curso_id"
	factCursos                = "table.cursos"
	factUniquePromoEsp        = "proyectos.uq_proyecto_titulo_promo_esp"
	factTutorCursoLeft        = "table.tutor_curso.remaining"
	factCursosTutor           = "cursos.proyectos.tutor_id"
)

// Cursos classifies projects directly by promotion and specialty and retires
// the course indirection. It refuses to start before Tutores has run.
var Cursos = register(&Plan{
	Name:     "cursos",
	Title:    "cursos -> promocion/especialidad",
	Probe:    probeCursos,
	Requires: requireTutores,
	Steps: []Step{
		{Name: "project classification columns", Skip: skipClassificationColumns, Run: addClassificationColumns},
		{Name: "classification backfill", Skip: skipClassificationBackfill, Run: backfillClassification},
		{Name: "classification foreign keys", Skip: skipClassificationFKs, Run: addClassificationFKs},
		{Name: "project course column removal", Skip: skipProjectCourse, Run: dropProjectCourse},
		{Name: "project unique key", Skip: skipProjectUnique, Run: addProjectUnique},
		{Name: "tutor assignment table removal", Skip: skipTutorAssignment, Run: dropTutorAssignment},
	},
	Verify: verifyCursos,
})

func probeCursos(ctx context.Context, cat Catalog) (*Facts, error) {
	p := newProber(ctx, cat)
	p.column(factCursosTutor, "proyectos", "tutor_id", true)
	p.column(factProyectosPromocion, "proyectos", "promocion_id", true)
	p.column(factProyectosEspecialidad, "proyectos", "especialidad_id", true)
	p.foreignKey(factProyectosPromocionFK, "proyectos", "promocion_id", true)
	p.foreignKey(factProyectosEspecialFK, "proyectos", "especialidad_id", true)
	p.column(factProyectosCurso, "proyectos", "curso_id", false)
	p.table(factCursos, "cursos", true)
	p.index(factUniquePromoEsp, "proyectos", "uq_proyecto_titulo_promo_esp", true)
	p.table(factTutorCursoLeft, "tutor_curso", false)
	return p.done()
}

func requireTutores(f *Facts) error {
	if !f.Has(factCursosTutor) {
		return ErrTutoresRequired
	}
	return nil
}

// 1. columns

func skipClassificationColumns(f *Facts) string {
	if f.Has(factProyectosPromocion) && f.Has(factProyectosEspecialidad) {
		return "promocion_id and especialidad_id already exist"
	}
	return ""
}

func addClassificationColumns(ctx context.Context, x *Exec, f *Facts) error {
	if !f.Has(factProyectosPromocion) {
		if err := x.Apply(ctx, "ALTER TABLE proyectos ADD COLUMN promocion_id INT NULL AFTER tutor_id"); err != nil {
			return err
		}
		f.Set(factProyectosPromocion, true)
	}
	if !f.Has(factProyectosEspecialidad) {
		if err := x.Apply(ctx, "ALTER TABLE proyectos ADD COLUMN especialidad_id INT NULL AFTER promocion_id"); err != nil {
			return err
		}
		f.Set(factProyectosEspecialidad, true)
	}
	return nil
}

// 2. backfill from cursos

func skipClassificationBackfill(f *Facts) string {
	switch {
	case !f.Has(factProyectosCurso):
		return "proyectos.curso_id already removed"
	case !f.Has(factCursos):
		return "no cursos table to read from"
	}
	return ""
}

func backfillClassification(ctx context.Context, x *Exec, _ *Facts) error {
	return x.Apply(ctx, `UPDATE proyectos p
JOIN cursos c ON c.id = p.curso_id
SET p.promocion_id = c.promocion_id, p.especialidad_id = c.especialidad_id
WHERE p.promocion_id IS NULL OR p.especialidad_id IS NULL`)
}

// 3. foreign keys

func skipClassificationFKs(f *Facts) string {
	if f.Has(factProyectosPromocionFK) && f.Has(factProyectosEspecialFK) {
		return "classification foreign keys already exist"
	}
	return ""
}

func addClassificationFKs(ctx context.Context, x *Exec, f *Facts) error {
	if !f.Has(factProyectosPromocionFK) {
		if err := x.Apply(ctx, `ALTER TABLE proyectos
ADD CONSTRAINT fk_proyectos_promocion FOREIGN KEY (promocion_id) REFERENCES promociones(id)
ON DELETE RESTRICT ON UPDATE CASCADE`); err != nil {
			return err
		}
		f.Set(factProyectosPromocionFK, true)
	}
	if !f.Has(factProyectosEspecialFK) {
		if err := x.Apply(ctx, `ALTER TABLE proyectos
ADD CONSTRAINT fk_proyectos_especialidad FOREIGN KEY (especialidad_id) REFERENCES especialidades(id)
ON DELETE RESTRICT ON UPDATE CASCADE`); err != nil {
			return err
		}
		f.Set(factProyectosEspecialFK, true)
	}
	return nil
}

// 4. proyectos.curso_id

func skipProjectCourse(f *Facts) string {
	if !f.Has(factProyectosCurso) {
		return "proyectos.curso_id already removed"
	}
	return ""
}

func dropProjectCourse(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.DropForeignKeys(ctx, "proyectos", "curso_id"); err != nil {
		return err
	}
	for _, stmt := range []string{
		"ALTER TABLE proyectos DROP KEY uq_proyecto_titulo_curso",
		"ALTER TABLE proyectos DROP COLUMN curso_id",
	} {
		if err := x.Apply(ctx, stmt); err != nil {
			return err
		}
	}
	f.Set(factProyectosCurso, false)
	return nil
}

// 5. unique (titulo, promocion_id, especialidad_id)

func skipProjectUnique(f *Facts) string {
	if f.Has(factUniquePromoEsp) {
		return "uq_proyecto_titulo_promo_esp already exists"
	}
	return ""
}

func addProjectUnique(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.Apply(ctx, "ALTER TABLE proyectos ADD UNIQUE KEY uq_proyecto_titulo_promo_esp (titulo, promocion_id, especialidad_id)"); err != nil {
		return err
	}
	f.Set(factUniquePromoEsp, true)
	return nil
}

// 6. tutor_curso

func skipTutorAssignment(f *Facts) string {
	if !f.Has(factTutorCursoLeft) {
		return "tutor_curso already removed"
	}
	return ""
}

func dropTutorAssignment(ctx context.Context, x *Exec, f *Facts) error {
	if err := x.Apply(ctx, "DROP TABLE IF EXISTS tutor_curso"); err != nil {
		return err
	}
	f.Set(factTutorCursoLeft, false)
	return nil
}

func verifyCursos(ctx context.Context, cat Catalog) (*Report, error) {
	v := newVerifier(ctx, cat, "cursos")
	v.table("tutor_curso", false)
	if v.exists("cursos") {
		v.note("table cursos is kept and may be dropped manually")
	}

	hasPromo := v.column("proyectos", "promocion_id", true)
	hasEsp := v.column("proyectos", "especialidad_id", true)
	v.column("proyectos", "curso_id", false)
	hasTutor := v.column("proyectos", "tutor_id", true)

	v.roles()
	v.count("active projects", "proyectos", liveRows, false)
	v.nullCount("projects without promotion", "proyectos", "promocion_id", hasPromo)
	v.nullCount("projects without specialty", "proyectos", "especialidad_id", hasEsp)
	v.foreignKeys("proyectos")
	if hasPromo && hasEsp && hasTutor {
		v.preview(5)
	}
	return v.done()
}
