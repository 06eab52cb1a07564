package database

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/migration"
	"github.com/repoacademico/repositorio/core/report"
)

var reportOrdering = []core.DBOrdering{
	{Field: "pr.anio", Ascending: false},
	{Field: "e.nombre", Ascending: true},
	{Field: "p.titulo", Ascending: true},
}

const reportQuery = `SELECT p.id, p.titulo,
	COALESCE(p.descripcion, '') AS descripcion,
	p.estado,
	COALESCE(u.nombre, '') AS tutor,
	pr.id AS promocion_id,
	pr.anio AS promocion,
	COALESCE(pr.descripcion, '') AS promocion_descripcion,
	e.id AS especialidad_id,
	e.nombre AS especialidad,
	COALESCE(AVG(n.calificacion), 0) AS calificacion,
	COUNT(DISTINCT n.id) AS notas,
	COUNT(DISTINCT af.id) > 0 AS memoria,
	COALESCE(MAX(af.nombre_visible), '') AS archivo,
	p.created_at AS creado
FROM proyectos p
JOIN promociones pr ON pr.id = p.promocion_id
JOIN especialidades e ON e.id = p.especialidad_id
LEFT JOIN usuarios u ON u.id = p.tutor_id
LEFT JOIN notas n ON n.proyecto_id = p.id
LEFT JOIN archivo_final af ON af.proyecto_id = p.id AND af.eliminado = 0
WHERE p.eliminado = 0
GROUP BY p.id, pr.id, e.id, u.id
ORDER BY `

// ReportRepository reads the live projects for the workbook.
type ReportRepository struct {
	db core.DBExecutor
}

var _ report.Repository = (*ReportRepository)(nil)

func NewReportRepository(db core.DBExecutor) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Projects(ctx context.Context) ([]report.Project, error) {
	order := make([]string, 0, len(reportOrdering))
	for _, ord := range reportOrdering {
		order = append(order, ord.String())
	}

	projects := make([]report.Project, 0)
	if err := r.db.SelectContext(ctx, &projects, reportQuery+strings.Join(order, ", ")); err != nil {
		if migration.IsBadField(err) {
			return nil, report.ErrSchemaNotMigrated
		}
		return nil, errors.Wrap(err, "listing projects")
	}
	return projects, nil
}
