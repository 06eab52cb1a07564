package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoacademico/repositorio/core/report"
)

var reportCols = []string{
	"id", "titulo", "descripcion", "estado", "tutor",
	"promocion_id", "promocion", "promocion_descripcion",
	"especialidad_id", "especialidad",
	"calificacion", "notas", "memoria", "archivo", "creado",
}

func TestReportRepository_Projects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewReportRepository(sqlx.NewDb(db, "mysql"))
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY pr.anio DESC, e.nombre ASC, p.titulo ASC")).
		WillReturnRows(sqlmock.NewRows(reportCols).
			AddRow(1, "Sistema de Biblioteca", "", "aprobado", "Docente Informatica", 1, 2026, "Promoción 2026", 1, "Informatica", 9.5, 2, true, "memoria.pdf", created))
	projects, err := repo.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, report.Project{
		ID:                   1,
		Titulo:               "Sistema de Biblioteca",
		Estado:               report.EstadoAprobado,
		Tutor:                "Docente Informatica",
		PromocionID:          1,
		Promocion:            2026,
		PromocionDescripcion: "Promoción 2026",
		EspecialidadID:       1,
		Especialidad:         "Informatica",
		Calificacion:         9.5,
		Notas:                2,
		Memoria:              true,
		Archivo:              "memoria.pdf",
		Creado:               created,
	}, projects[0])

	mock.ExpectQuery("FROM proyectos p").
		WillReturnError(&mysql.MySQLError{Number: 1054, Message: "Unknown column 'p.promocion_id' in 'on clause'"})
	_, err = repo.Projects(context.Background())
	assert.Equal(t, report.ErrSchemaNotMigrated, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
